package outputv1

import (
	"fmt"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// Processor message type tags, carried in the "types" field.
const (
	TypeOrderRejected  = "OrderRejected"
	TypeOrderSubmitted = "OrderSubmitted"
	TypeOrderCancelled = "OrderCancelled"
	TypeOrderTraded    = "OrderTraded"
)

// ProcessorMessage is any payload for the processor stream. Messages of the
// same market hash to the same publisher worker so their order is preserved.
type ProcessorMessage interface {
	HashKey() string
}

// Trade is one fill between a taker and a resting maker. Price is the
// maker's own book price; TakerPrice is what the fill cost in the taker
// token's price space. The two differ exactly when the maker rests in the
// complementary token's book, in which case the symbols differ too and
// TakerPrice is the complement of Price.
type Trade struct {
	TradeID      string                    `json:"trade_id"`
	TakerOrderID string                    `json:"taker_order_id"`
	MakerOrderID string                    `json:"maker_order_id"`
	TakerUserID  int64                     `json:"taker_user_id"`
	MakerUserID  int64                     `json:"maker_user_id"`
	TakerSymbol  enginev1.PredictionSymbol `json:"taker_symbol"`
	MakerSymbol  enginev1.PredictionSymbol `json:"maker_symbol"`
	TakerSide    enginev1.OrderSide        `json:"taker_side"`

	Price            string `json:"price"`
	PriceI32         int32  `json:"price_i32"`
	TakerPrice       string `json:"taker_price"`
	TakerPriceI32    int32  `json:"taker_price_i32"`
	Quantity         string `json:"quantity"`
	QuantityU64      uint64 `json:"quantity_u64"`
	Quote            string `json:"quote"`
	QuoteMicros      int64  `json:"quote_micros"`
	TakerQuote       string `json:"taker_quote"`
	TakerQuoteMicros int64  `json:"taker_quote_micros"`

	Timestamp int64 `json:"timestamp"`
}

// NewTrade fills in the formatted fields from the grid values.
func NewTrade(tradeID string, taker, maker *enginev1.Order, makerPrice, takerPrice int32, quantity uint64) Trade {
	quote := enginev1.QuoteMicros(makerPrice, quantity)
	takerQuote := enginev1.QuoteMicros(takerPrice, quantity)
	return Trade{
		TradeID:          tradeID,
		TakerOrderID:     taker.OrderID,
		MakerOrderID:     maker.OrderID,
		TakerUserID:      taker.UserID,
		MakerUserID:      maker.UserID,
		TakerSymbol:      taker.Symbol,
		MakerSymbol:      maker.Symbol,
		TakerSide:        taker.Side,
		Price:            enginev1.FormatPrice(makerPrice),
		PriceI32:         makerPrice,
		TakerPrice:       enginev1.FormatPrice(takerPrice),
		TakerPriceI32:    takerPrice,
		Quantity:         enginev1.FormatQuantity(quantity),
		QuantityU64:      quantity,
		Quote:            enginev1.FormatQuote(quote),
		QuoteMicros:      quote,
		TakerQuote:       enginev1.FormatQuote(takerQuote),
		TakerQuoteMicros: takerQuote,
		Timestamp:        time.Now().UnixMilli(),
	}
}

// OrderRejectedMessage reports an order that failed validation or routing.
// Rejections raised before a market engine accepts the command carry update
// id zero.
type OrderRejectedMessage struct {
	Types     string                    `json:"types"`
	OrderID   string                    `json:"order_id"`
	Symbol    enginev1.PredictionSymbol `json:"symbol"`
	UserID    int64                     `json:"user_id"`
	Reason    string                    `json:"reason"`
	Code      string                    `json:"code"`
	Timestamp int64                     `json:"timestamp"`
	UpdateID  uint64                    `json:"update_id"`
}

func NewOrderRejected(orderID string, symbol enginev1.PredictionSymbol, userID int64, reason string, code string, updateID uint64) *OrderRejectedMessage {
	return &OrderRejectedMessage{
		Types:     TypeOrderRejected,
		OrderID:   orderID,
		Symbol:    symbol,
		UserID:    userID,
		Reason:    reason,
		Code:      code,
		Timestamp: time.Now().UnixMilli(),
		UpdateID:  updateID,
	}
}

// OrderSubmittedMessage reports a limit order resting on the book, carrying
// its state after any immediate fills.
type OrderSubmittedMessage struct {
	Types     string         `json:"types"`
	Order     enginev1.Order `json:"order"`
	Timestamp int64          `json:"timestamp"`
	UpdateID  uint64         `json:"update_id"`
}

func NewOrderSubmitted(order *enginev1.Order, updateID uint64) *OrderSubmittedMessage {
	return &OrderSubmittedMessage{
		Types:     TypeOrderSubmitted,
		Order:     *order,
		Timestamp: time.Now().UnixMilli(),
		UpdateID:  updateID,
	}
}

// OrderCancelledMessage reports removal of an order's unfilled remainder,
// whether by explicit cancel, self trade, market residual or event close.
type OrderCancelledMessage struct {
	Types             string                    `json:"types"`
	OrderID           string                    `json:"order_id"`
	Symbol            enginev1.PredictionSymbol `json:"symbol"`
	UserID            int64                     `json:"user_id"`
	RemainingQuantity uint64                    `json:"remaining_quantity"`
	Reason            string                    `json:"reason"`
	Timestamp         int64                     `json:"timestamp"`
	UpdateID          uint64                    `json:"update_id"`
}

// Cancellation reasons.
const (
	CancelReasonRequested      = "requested"
	CancelReasonSelfTrade      = "self_trade"
	CancelReasonMarketResidual = "market_residual"
	CancelReasonEventClosed    = "event_closed"
	CancelReasonMarketClosed   = "market_closed"
)

func NewOrderCancelled(order *enginev1.Order, reason string, updateID uint64) *OrderCancelledMessage {
	return &OrderCancelledMessage{
		Types:             TypeOrderCancelled,
		OrderID:           order.OrderID,
		Symbol:            order.Symbol,
		UserID:            order.UserID,
		RemainingQuantity: order.RemainingQuantity,
		Reason:            reason,
		Timestamp:         time.Now().UnixMilli(),
		UpdateID:          updateID,
	}
}

// OrderTradedMessage reports the fills produced by one taker command.
type OrderTradedMessage struct {
	Types     string                    `json:"types"`
	OrderID   string                    `json:"order_id"`
	Symbol    enginev1.PredictionSymbol `json:"symbol"`
	Trades    []Trade                   `json:"trades"`
	Timestamp int64                     `json:"timestamp"`
	UpdateID  uint64                    `json:"update_id"`
}

func NewOrderTraded(taker *enginev1.Order, trades []Trade, updateID uint64) *OrderTradedMessage {
	return &OrderTradedMessage{
		Types:     TypeOrderTraded,
		OrderID:   taker.OrderID,
		Symbol:    taker.Symbol,
		Trades:    trades,
		Timestamp: time.Now().UnixMilli(),
		UpdateID:  updateID,
	}
}

func marketHashKey(symbol enginev1.PredictionSymbol) string {
	return marketHashKeyParts(symbol.EventID, symbol.MarketID)
}

func marketHashKeyParts(eventID int64, marketID int16) string {
	return fmt.Sprintf("%d|%d", eventID, marketID)
}

func (m *OrderRejectedMessage) HashKey() string  { return marketHashKey(m.Symbol) }
func (m *OrderSubmittedMessage) HashKey() string { return marketHashKey(m.Order.Symbol) }
func (m *OrderCancelledMessage) HashKey() string { return marketHashKey(m.Symbol) }
func (m *OrderTradedMessage) HashKey() string    { return marketHashKey(m.Symbol) }
