package enginev1

import (
	"fmt"
	"time"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	// SideBuy buys outcome tokens for quote currency.
	SideBuy OrderSide = "buy"
	// SideSell sells outcome tokens for quote currency.
	SideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution style of an order. Prediction markets only
// support limit and market orders.
type OrderType string

const (
	// TypeLimit rests at its price when not fully matched.
	TypeLimit OrderType = "limit"
	// TypeMarket never rests; any unmatched remainder is cancelled.
	TypeMarket OrderType = "market"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// StatusNew is a resting order with no fills.
	StatusNew OrderStatus = "new"
	// StatusPartiallyFilled is a resting order with some fills.
	StatusPartiallyFilled OrderStatus = "partially_filled"
	// StatusFilled is a fully matched order.
	StatusFilled OrderStatus = "filled"
	// StatusCancelled is a cancelled order.
	StatusCancelled OrderStatus = "cancelled"
	// StatusRejected is an order that failed validation.
	StatusRejected OrderStatus = "rejected"
)

// Order is the in-memory representation of a resting order.
type Order struct {
	OrderID string           `json:"order_id"`
	Symbol  PredictionSymbol `json:"symbol"`
	Side    OrderSide        `json:"side"`
	Type    OrderType        `json:"order_type"`

	// Quantity is the share quantity on the QuantityScale grid.
	Quantity uint64 `json:"quantity"`
	// Price is on the PriceScale grid, within [MinPrice, MaxPrice].
	Price int32 `json:"price"`
	// OppositeResultPrice is PriceScale - Price, the converted price used
	// when this order shadows the complementary token's book.
	OppositeResultPrice int32 `json:"opposite_result_price"`

	Status            OrderStatus `json:"status"`
	FilledQuantity    uint64      `json:"filled_quantity"`
	RemainingQuantity uint64      `json:"remaining_quantity"`

	// Timestamp is the acceptance time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	UserID    int64 `json:"user_id"`
	// OrderNum breaks ties between orders at the same price, lower is older.
	OrderNum uint64 `json:"order_num"`

	PrivyID     string `json:"privy_id"`
	OutcomeName string `json:"outcome_name"`
}

// NewOrder builds a resting order from accepted submit parameters.
func NewOrder(orderID string, symbol PredictionSymbol, side OrderSide, orderType OrderType, quantity uint64, price int32, userID int64, privyID, outcomeName string) (*Order, error) {
	if price < MinPrice || price > MaxPrice {
		return nil, fmt.Errorf("invalid price: %d", price)
	}

	return &Order{
		OrderID:             orderID,
		Symbol:              symbol,
		Side:                side,
		Type:                orderType,
		Quantity:            quantity,
		Price:               price,
		OppositeResultPrice: ComplementPrice(price),
		Status:              StatusNew,
		FilledQuantity:      0,
		RemainingQuantity:   quantity,
		Timestamp:           time.Now().UnixMilli(),
		UserID:              userID,
		PrivyID:             privyID,
		OutcomeName:         outcomeName,
	}, nil
}

// NewMarketBuyOrder builds a budget-bound market buy. It carries no price
// and no quantity; fills are bounded by the budget at each level instead.
func NewMarketBuyOrder(orderID string, symbol PredictionSymbol, userID int64, privyID, outcomeName string) *Order {
	return &Order{
		OrderID:     orderID,
		Symbol:      symbol,
		Side:        SideBuy,
		Type:        TypeMarket,
		Status:      StatusNew,
		Timestamp:   time.Now().UnixMilli(),
		UserID:      userID,
		PrivyID:     privyID,
		OutcomeName: outcomeName,
	}
}

// ApplyFill reduces the remaining quantity and updates the status.
func (o *Order) ApplyFill(quantity uint64) {
	o.RemainingQuantity -= quantity
	o.FilledQuantity = o.Quantity - o.RemainingQuantity

	if o.RemainingQuantity == 0 {
		o.Status = StatusFilled
	} else if o.FilledQuantity > 0 {
		o.Status = StatusPartiallyFilled
	}
}

// IsActive reports whether the order still rests on the book.
func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}
