package matching

import (
	"github.com/oklog/ulid/v2"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// fillPlan is one planned fill against a resting maker. levelPrice is the
// price of the level the taker crossed, which differs from the maker's own
// price when the maker rests here through the complementary token.
type fillPlan struct {
	maker      *enginev1.Order
	levelPrice int32
	quantity   uint64
}

func (e *MarketEngine) handleSubmit(msg *enginev1.SubmitOrderMessage) {
	if details := e.validateSubmit(msg); details != nil {
		e.sink.PublishProcessor(outputv1.NewOrderRejected(msg.OrderID, msg.Symbol, msg.UserID, details.Message, details.Code.String(), 0))
		return
	}

	e.updateID++
	uid := e.updateID

	var order *enginev1.Order
	marketBuy := msg.Type == enginev1.TypeMarket && msg.Side == enginev1.SideBuy
	if marketBuy {
		order = enginev1.NewMarketBuyOrder(msg.OrderID, msg.Symbol, msg.UserID, msg.PrivyID, msg.OutcomeName)
	} else {
		var err error
		order, err = enginev1.NewOrder(msg.OrderID, msg.Symbol, msg.Side, msg.Type, msg.Quantity, msg.Price, msg.UserID, msg.PrivyID, msg.OutcomeName)
		if err != nil {
			e.sink.PublishProcessor(outputv1.NewOrderRejected(msg.OrderID, msg.Symbol, msg.UserID, err.Error(), errors.OrderInvalidPriceError.String(), 0))
			return
		}
	}
	order.OrderNum = e.orderNum
	e.orderNum++

	fills, budgetLeft, selfTrade := e.match(order, msg.Budget)
	trades := e.applyFills(order, fills)
	if len(trades) > 0 {
		e.sink.PublishProcessor(outputv1.NewOrderTraded(order, trades, uid))
	}

	residual := order.RemainingQuantity > 0
	if marketBuy {
		residual = budgetLeft > 0
	}

	switch {
	case selfTrade:
		order.Status = enginev1.StatusCancelled
		e.sink.PublishProcessor(outputv1.NewOrderCancelled(order, outputv1.CancelReasonSelfTrade, uid))
		e.logger.Info("order halted on self trade",
			logger.Field{Key: "order_id", Value: order.OrderID},
			logger.Field{Key: "user_id", Value: order.UserID},
		)
	case order.Type == enginev1.TypeLimit && order.RemainingQuantity > 0:
		// Residual rests in both books.
		own := e.books[order.Symbol.TokenID]
		if err := own.AddOrder(order); err != nil {
			e.logger.Error(err, logger.Field{Key: "order_id", Value: order.OrderID})
			return
		}
		if err := e.otherBook(order.Symbol.TokenID).AddCrossOrder(order); err != nil {
			e.logger.Error(err, logger.Field{Key: "order_id", Value: order.OrderID})
			return
		}
		e.dirty = true
		e.sink.PublishProcessor(outputv1.NewOrderSubmitted(order, uid))
		e.sink.PublishStore(outputv1.NewOrderCreatedEvent(order))
	case order.Type == enginev1.TypeMarket && residual:
		// Market orders never rest; leftover quantity, or leftover budget for
		// a buy, is cancelled.
		order.Status = enginev1.StatusCancelled
		e.sink.PublishProcessor(outputv1.NewOrderCancelled(order, outputv1.CancelReasonMarketResidual, uid))
	}
}

func (e *MarketEngine) validateSubmit(msg *enginev1.SubmitOrderMessage) *errors.ErrorDetails {
	if msg.OrderID == "" {
		return errors.NewErrorDetails("order id is required", errors.GeneralBadRequestError, "order_id")
	}
	if msg.UserID <= 0 {
		return errors.NewErrorDetails("user id is required", errors.OrderInvalidUserError, "user_id")
	}
	if msg.Symbol.EventID != e.eventID || msg.Symbol.MarketID != e.marketID {
		return errors.NewErrorDetails("symbol does not belong to this market", errors.OrderUnknownSymbolError, "symbol")
	}
	book := e.books[msg.Symbol.TokenID]
	if book == nil {
		return errors.NewErrorDetails("unknown token", errors.OrderUnknownSymbolError, "symbol")
	}
	if book.Contains(msg.OrderID) {
		return errors.NewErrorDetails("order id already resting", errors.GeneralBadRequestError, "order_id")
	}

	switch {
	case msg.Type == enginev1.TypeLimit:
		if msg.Quantity == 0 {
			return errors.NewErrorDetails("quantity must be positive", errors.OrderInvalidQuantityError, "quantity")
		}
		if msg.Price < enginev1.MinPrice || msg.Price > enginev1.MaxPrice {
			return errors.NewErrorDetails("price out of range", errors.OrderInvalidPriceError, "price")
		}
	case msg.Side == enginev1.SideBuy:
		// Market buys are budget bound, never quantity bound.
		if msg.Quantity != 0 {
			return errors.NewErrorDetails("market buy must not carry a quantity", errors.OrderInvalidQuantityError, "quantity")
		}
		if msg.Budget <= 0 {
			return errors.NewErrorDetails("market buy requires a positive budget", errors.OrderInvalidBudgetError, "budget")
		}
	default:
		if msg.Quantity == 0 {
			return errors.NewErrorDetails("quantity must be positive", errors.OrderInvalidQuantityError, "quantity")
		}
		// The price of a market sell is its floor and must be on the grid.
		if msg.Price < enginev1.MinPrice || msg.Price > enginev1.MaxPrice {
			return errors.NewErrorDetails("floor price out of range", errors.OrderInvalidPriceError, "price")
		}
	}
	return nil
}

// match walks the combined book side the taker crosses and plans fills in
// price-time priority. It stops at the taker's price bound, when the taker
// is exhausted, or immediately on a self trade. Nothing is mutated here.
// The returned budget is what a market buy has left unspent.
func (e *MarketEngine) match(taker *enginev1.Order, budget int64) ([]fillPlan, int64, bool) {
	book := e.books[taker.Symbol.TokenID]
	marketBuy := taker.Type == enginev1.TypeMarket && taker.Side == enginev1.SideBuy

	var fills []fillPlan
	remaining := taker.RemainingQuantity
	budgetLeft := budget

	walk := book.Asks()
	if taker.Side == enginev1.SideSell {
		walk = book.Bids()
	}

	for _, level := range walk {
		if taker.Type == enginev1.TypeLimit {
			if taker.Side == enginev1.SideBuy && level.Price > taker.Price {
				break
			}
			if taker.Side == enginev1.SideSell && level.Price < taker.Price {
				break
			}
		} else if taker.Side == enginev1.SideSell && level.Price < taker.Price {
			// Floor price of a market sell.
			break
		}

		for _, maker := range level.Orders {
			if marketBuy {
				// Asks only get more expensive from here; once the budget
				// cannot buy a single grid unit, matching is over.
				if enginev1.QuantityByBudget(budgetLeft, level.Price) == 0 {
					return fills, budgetLeft, false
				}
			} else if remaining == 0 {
				return fills, budgetLeft, false
			}

			if maker.UserID == taker.UserID {
				return fills, budgetLeft, true
			}

			quantity := maker.RemainingQuantity
			if marketBuy {
				if afford := enginev1.QuantityByBudget(budgetLeft, level.Price); afford < quantity {
					quantity = afford
				}
			} else if remaining < quantity {
				quantity = remaining
			}

			fills = append(fills, fillPlan{maker: maker, levelPrice: level.Price, quantity: quantity})
			if marketBuy {
				budgetLeft -= enginev1.QuoteMicros(level.Price, quantity)
			} else {
				remaining -= quantity
			}
		}
	}

	return fills, budgetLeft, false
}

// applyFills mutates makers and taker, removes exhausted makers from both
// books and emits the store events of the fills. Trades record the maker's
// own book price next to the taker-side level price.
func (e *MarketEngine) applyFills(taker *enginev1.Order, fills []fillPlan) []outputv1.Trade {
	if len(fills) == 0 {
		return nil
	}

	marketBuy := taker.Type == enginev1.TypeMarket && taker.Side == enginev1.SideBuy
	trades := make([]outputv1.Trade, 0, len(fills))

	for _, fill := range fills {
		fill.maker.ApplyFill(fill.quantity)
		if marketBuy {
			taker.FilledQuantity += fill.quantity
			taker.Status = enginev1.StatusFilled
		} else {
			taker.ApplyFill(fill.quantity)
		}

		trades = append(trades, outputv1.NewTrade(ulid.Make().String(), taker, fill.maker, fill.maker.Price, fill.levelPrice, fill.quantity))
		e.sink.PublishStore(outputv1.NewOrderFilledEvent(fill.maker))

		if fill.maker.RemainingQuantity == 0 {
			e.removeFromBothBooks(fill.maker.OrderID)
		}

		e.latestTrade[taker.Symbol.TokenID] = fill.levelPrice
		e.latestTrade[e.otherToken(taker.Symbol.TokenID)] = enginev1.ComplementPrice(fill.levelPrice)
	}

	e.dirty = true
	return trades
}

func (e *MarketEngine) removeFromBothBooks(orderID string) {
	for _, tokenID := range e.tokens {
		if book := e.books[tokenID]; book != nil && book.Contains(orderID) {
			if _, err := book.RemoveOrder(orderID); err != nil {
				e.logger.Error(err, logger.Field{Key: "order_id", Value: orderID})
			}
		}
	}
}

func (e *MarketEngine) handleCancel(msg *enginev1.CancelOrderMessage) {
	book := e.books[msg.Symbol.TokenID]
	if book == nil {
		e.sink.PublishProcessor(outputv1.NewOrderRejected(msg.OrderID, msg.Symbol, msg.UserID, "unknown token", errors.OrderUnknownSymbolError.String(), 0))
		return
	}
	order, ok := book.GetOrder(msg.OrderID)
	if !ok {
		e.sink.PublishProcessor(outputv1.NewOrderRejected(msg.OrderID, msg.Symbol, msg.UserID, "order not resting", errors.OrderNotFoundError.String(), 0))
		return
	}
	if order.UserID != msg.UserID {
		e.sink.PublishProcessor(outputv1.NewOrderRejected(msg.OrderID, msg.Symbol, msg.UserID, "order belongs to another user", errors.OrderNotOwnedError.String(), 0))
		return
	}

	e.updateID++
	uid := e.updateID

	e.removeFromBothBooks(order.OrderID)
	order.Status = enginev1.StatusCancelled
	e.dirty = true

	e.sink.PublishProcessor(outputv1.NewOrderCancelled(order, outputv1.CancelReasonRequested, uid))
	e.sink.PublishStore(outputv1.NewOrderRemovedEvent(order))
}

// handleCancelAll cancels every resting order of the market in batches; each
// batch shares one update id. Either book already contains every order of
// the market, own side and shadow side alike.
func (e *MarketEngine) handleCancelAll(reason string) {
	book := e.books[e.tokens[0]]
	if book == nil {
		return
	}

	var orders []*enginev1.Order
	for _, level := range book.Bids() {
		orders = append(orders, level.Orders...)
	}
	for _, level := range book.Asks() {
		orders = append(orders, level.Orders...)
	}
	if len(orders) == 0 {
		return
	}

	for start := 0; start < len(orders); start += e.cfg.CancelBatchSize {
		end := start + e.cfg.CancelBatchSize
		if end > len(orders) {
			end = len(orders)
		}

		e.updateID++
		uid := e.updateID
		for _, order := range orders[start:end] {
			e.removeFromBothBooks(order.OrderID)
			order.Status = enginev1.StatusCancelled
			e.sink.PublishProcessor(outputv1.NewOrderCancelled(order, reason, uid))
			e.sink.PublishStore(outputv1.NewOrderRemovedEvent(order))
		}
	}

	e.dirty = true
	e.logger.Info("cancelled all resting orders",
		logger.Field{Key: "count", Value: len(orders)},
		logger.Field{Key: "reason", Value: reason},
	)
}
