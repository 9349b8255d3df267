package orderbookv1

import (
	"fmt"
	"sort"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// Level holds all resting orders at one price, oldest first.
type Level struct {
	Price  int32
	Orders []*enginev1.Order
}

// TotalQuantity sums the remaining quantity of every order at this level.
func (l *Level) TotalQuantity() uint64 {
	var total uint64
	for _, o := range l.Orders {
		total += o.RemainingQuantity
	}
	return total
}

type locator struct {
	side  enginev1.OrderSide
	price int32
}

// OrderBook is one outcome token's limit order book. Both tokens of a market
// share the same *Order values, so a fill applied through one book is visible
// in the other. The book itself holds no aggregates; depth is computed on
// demand.
type OrderBook struct {
	symbol enginev1.PredictionSymbol

	bids []*Level // descending price
	asks []*Level // ascending price

	bidLevels map[int32]*Level
	askLevels map[int32]*Level
	locators  map[string]locator
}

// NewOrderBook creates an empty book for one outcome token.
func NewOrderBook(symbol enginev1.PredictionSymbol) *OrderBook {
	return &OrderBook{
		symbol:    symbol,
		bidLevels: make(map[int32]*Level),
		askLevels: make(map[int32]*Level),
		locators:  make(map[string]locator),
	}
}

// Symbol returns the token this book belongs to.
func (b *OrderBook) Symbol() enginev1.PredictionSymbol {
	return b.symbol
}

// AddOrder rests an order in its own book, on its own side at its own price.
func (b *OrderBook) AddOrder(order *enginev1.Order) error {
	return b.insert(order, order.Side, order.Price)
}

// AddCrossOrder rests an order of the complementary token in this book, on
// the opposite side at the converted price. Buying the other token at p is
// the same position as selling this one at PriceScale - p, so every order
// shows up in both books and one combined side can be matched against.
func (b *OrderBook) AddCrossOrder(order *enginev1.Order) error {
	return b.insert(order, order.Side.Opposite(), order.OppositeResultPrice)
}

func (b *OrderBook) insert(order *enginev1.Order, side enginev1.OrderSide, price int32) error {
	if _, ok := b.locators[order.OrderID]; ok {
		return fmt.Errorf("order %s already in book %s", order.OrderID, b.symbol)
	}

	level := b.level(side, price)
	if level == nil {
		level = b.addLevel(side, price)
	}
	level.Orders = append(level.Orders, order)
	b.locators[order.OrderID] = locator{side: side, price: price}
	return nil
}

// RemoveOrder takes an order out of this book and returns it. The shared
// order value is not mutated; callers decide whether it was filled or
// cancelled.
func (b *OrderBook) RemoveOrder(orderID string) (*enginev1.Order, error) {
	loc, ok := b.locators[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found in book %s", orderID, b.symbol)
	}

	level := b.level(loc.side, loc.price)
	for i, o := range level.Orders {
		if o.OrderID != orderID {
			continue
		}
		level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
		delete(b.locators, orderID)
		if len(level.Orders) == 0 {
			b.dropLevel(loc.side, loc.price)
		}
		return o, nil
	}

	// Locator without a matching level entry means the book is corrupted.
	return nil, fmt.Errorf("order %s missing from level %d in book %s", orderID, loc.price, b.symbol)
}

// GetOrder returns a resting order by id.
func (b *OrderBook) GetOrder(orderID string) (*enginev1.Order, bool) {
	loc, ok := b.locators[orderID]
	if !ok {
		return nil, false
	}
	level := b.level(loc.side, loc.price)
	if level == nil {
		return nil, false
	}
	for _, o := range level.Orders {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return nil, false
}

// Contains reports whether an order rests in this book.
func (b *OrderBook) Contains(orderID string) bool {
	_, ok := b.locators[orderID]
	return ok
}

// OrderCount returns the number of resting orders.
func (b *OrderBook) OrderCount() int {
	return len(b.locators)
}

// Bids returns the bid levels from high to low price. The returned slice and
// its levels are live; callers must not modify them.
func (b *OrderBook) Bids() []*Level {
	return b.bids
}

// Asks returns the ask levels from low to high price. The returned slice and
// its levels are live; callers must not modify them.
func (b *OrderBook) Asks() []*Level {
	return b.asks
}

// BestBid returns the highest bid price.
func (b *OrderBook) BestBid() (int32, bool) {
	if len(b.bids) == 0 {
		return 0, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the lowest ask price.
func (b *OrderBook) BestAsk() (int32, bool) {
	if len(b.asks) == 0 {
		return 0, false
	}
	return b.asks[0].Price, true
}

// Depth aggregates the book into at most maxDepth levels per side. A
// maxDepth of zero or less means no limit.
func (b *OrderBook) Depth(maxDepth int, updateID uint64) OrderBookDepth {
	return OrderBookDepth{
		Symbol:    b.symbol,
		Bids:      aggregateLevels(b.bids, maxDepth),
		Asks:      aggregateLevels(b.asks, maxDepth),
		Timestamp: time.Now().UnixMilli(),
		UpdateID:  updateID,
	}
}

func aggregateLevels(levels []*Level, maxDepth int) []PriceLevel {
	n := len(levels)
	if maxDepth > 0 && n > maxDepth {
		n = maxDepth
	}

	out := make([]PriceLevel, 0, n)
	for _, level := range levels[:n] {
		total := level.TotalQuantity()
		out = append(out, PriceLevel{
			Price:            enginev1.FormatPrice(level.Price),
			PriceI32:         level.Price,
			TotalQuantity:    enginev1.FormatQuantity(total),
			TotalQuantityU64: total,
			OrderCount:       len(level.Orders),
		})
	}
	return out
}

// Stats summarizes the current book.
func (b *OrderBook) Stats() OrderBookStats {
	stats := OrderBookStats{
		Symbol:    b.symbol,
		BidLevels: len(b.bids),
		AskLevels: len(b.asks),
	}
	for _, level := range b.bids {
		stats.TotalBidOrders += len(level.Orders)
		stats.TotalBidQuantity += level.TotalQuantity()
	}
	for _, level := range b.asks {
		stats.TotalAskOrders += len(level.Orders)
		stats.TotalAskQuantity += level.TotalQuantity()
	}
	return stats
}

func (b *OrderBook) level(side enginev1.OrderSide, price int32) *Level {
	if side == enginev1.SideBuy {
		return b.bidLevels[price]
	}
	return b.askLevels[price]
}

func (b *OrderBook) addLevel(side enginev1.OrderSide, price int32) *Level {
	level := &Level{Price: price}
	if side == enginev1.SideBuy {
		b.bidLevels[price] = level
		idx := sort.Search(len(b.bids), func(i int) bool { return b.bids[i].Price < price })
		b.bids = append(b.bids, nil)
		copy(b.bids[idx+1:], b.bids[idx:])
		b.bids[idx] = level
	} else {
		b.askLevels[price] = level
		idx := sort.Search(len(b.asks), func(i int) bool { return b.asks[i].Price > price })
		b.asks = append(b.asks, nil)
		copy(b.asks[idx+1:], b.asks[idx:])
		b.asks[idx] = level
	}
	return level
}

func (b *OrderBook) dropLevel(side enginev1.OrderSide, price int32) {
	if side == enginev1.SideBuy {
		delete(b.bidLevels, price)
		for i, level := range b.bids {
			if level.Price == price {
				b.bids = append(b.bids[:i], b.bids[i+1:]...)
				return
			}
		}
	} else {
		delete(b.askLevels, price)
		for i, level := range b.asks {
			if level.Price == price {
				b.asks = append(b.asks[:i], b.asks[i+1:]...)
				return
			}
		}
	}
}
