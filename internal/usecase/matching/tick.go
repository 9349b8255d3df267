package matching

import (
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	orderbookv1 "github.com/purplecity/PredictionMarket/internal/domain/orderbook/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
)

// levelImage remembers the aggregated quantities of the previous tick so the
// next tick can publish only what changed.
type levelImage struct {
	bids map[int32]uint64
	asks map[int32]uint64
}

func newLevelImage() *levelImage {
	return &levelImage{bids: make(map[int32]uint64), asks: make(map[int32]uint64)}
}

// handleTick publishes depth and price change updates when the books changed
// since the previous tick. A tick that observes changes consumes one update
// id of its own and records it on the store stream, so replay can line the
// counters up again after a restart.
func (e *MarketEngine) handleTick() {
	if !e.dirty {
		return
	}
	e.dirty = false

	e.updateID++
	uid := e.updateID
	now := time.Now().UnixMilli()

	depths := make([]outputv1.TokenDepth, 0, 2)
	changed := make([]outputv1.SingleTokenPriceInfo, 0, 2)

	for _, tokenID := range e.tokens {
		book := e.books[tokenID]
		if book == nil {
			continue
		}
		depths = append(depths, outputv1.TokenDepth{
			OrderBookDepth:   book.Depth(e.cfg.MaxDepthReported, uid),
			LatestTradePrice: formatLatest(e.latestTrade[tokenID]),
		})

		// Diff against the full book, not the capped view, so levels sliding
		// in and out of the reported window do not show up as changes.
		full := book.Depth(0, uid)
		image := e.prevLevels[tokenID]
		bidChanges, bidImage := diffSide(image.bids, full.Bids)
		askChanges, askImage := diffSide(image.asks, full.Asks)
		image.bids = bidImage
		image.asks = askImage

		if len(bidChanges) == 0 && len(askChanges) == 0 {
			continue
		}
		changed = append(changed, outputv1.SingleTokenPriceInfo{
			TokenID:          tokenID,
			BestBid:          formatBest(book.BestBid()),
			BestAsk:          formatBest(book.BestAsk()),
			LatestTradePrice: formatLatest(e.latestTrade[tokenID]),
			Bids:             bidChanges,
			Asks:             askChanges,
		})
	}

	e.sink.PublishDepth(&outputv1.WebSocketDepth{
		EventID:   e.eventID,
		MarketID:  e.marketID,
		Tokens:    depths,
		Timestamp: now,
		UpdateID:  uid,
	})

	if len(changed) > 0 {
		e.sink.PublishPriceChanges(&outputv1.WebSocketPriceChanges{
			EventID:   e.eventID,
			MarketID:  e.marketID,
			Tokens:    changed,
			Timestamp: now,
			UpdateID:  uid,
		})
	}

	e.sink.PublishStore(outputv1.NewMarketUpdateIDEvent(e.eventID, e.marketID, uid))
}

// diffSide compares one side against the previous image. Vanished levels are
// reported with quantity "0".
func diffSide(prev map[int32]uint64, current []orderbookv1.PriceLevel) ([]outputv1.PriceLevelInfo, map[int32]uint64) {
	next := make(map[int32]uint64, len(current))
	var changes []outputv1.PriceLevelInfo

	for _, level := range current {
		next[level.PriceI32] = level.TotalQuantityU64
		if prev[level.PriceI32] != level.TotalQuantityU64 {
			changes = append(changes, outputv1.PriceLevelInfo{
				Price:    level.Price,
				Quantity: level.TotalQuantity,
			})
		}
	}
	for price := range prev {
		if _, ok := next[price]; !ok {
			changes = append(changes, outputv1.PriceLevelInfo{
				Price:    enginev1.FormatPrice(price),
				Quantity: "0",
			})
		}
	}

	return changes, next
}

func formatBest(price int32, ok bool) string {
	if !ok {
		return ""
	}
	return enginev1.FormatPrice(price)
}

func formatLatest(price int32) string {
	if price == 0 {
		return ""
	}
	return enginev1.FormatPrice(price)
}
