package outputv1

import (
	"sort"
	"strconv"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// OrderFill is the store view of a fill applied to one order.
type OrderFill struct {
	OrderID           string                    `json:"order_id"`
	Symbol            enginev1.PredictionSymbol `json:"symbol"`
	FilledQuantity    uint64                    `json:"filled_quantity"`
	RemainingQuantity uint64                    `json:"remaining_quantity"`
	Status            enginev1.OrderStatus      `json:"status"`
}

// OrderRemoval is the store view of an order leaving the book.
type OrderRemoval struct {
	OrderID string                    `json:"order_id"`
	Symbol  enginev1.PredictionSymbol `json:"symbol"`
}

// MarketInfo describes one market in an event registration.
type MarketInfo struct {
	MarketID int16    `json:"market_id"`
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"token_ids"`
}

// EventAdded is the store view of an event registration.
type EventAdded struct {
	EventID int64        `json:"event_id"`
	Markets []MarketInfo `json:"markets"`
	EndDate *time.Time   `json:"end_date"`
}

// MarketAdded is the store view of one market joining an existing event.
type MarketAdded struct {
	EventID int64      `json:"event_id"`
	Market  MarketInfo `json:"market"`
}

// MarketRef names one market of one event.
type MarketRef struct {
	EventID  int64 `json:"event_id"`
	MarketID int16 `json:"market_id"`
}

// MarketUpdateID records the per-market update counter so a restart resumes
// numbering where it left off.
type MarketUpdateID struct {
	EventID  int64  `json:"event_id"`
	MarketID int16  `json:"market_id"`
	UpdateID uint64 `json:"update_id"`
}

// OrderChangeEvent is the store stream payload. Exactly one field is set;
// the JSON form is an object with a single key naming the variant.
type OrderChangeEvent struct {
	OrderCreated   *enginev1.Order `json:"OrderCreated,omitempty"`
	OrderFilled    *OrderFill      `json:"OrderFilled,omitempty"`
	OrderRemoved   *OrderRemoval   `json:"OrderRemoved,omitempty"`
	EventAdded     *EventAdded     `json:"EventAdded,omitempty"`
	EventRemoved   *int64          `json:"EventRemoved,omitempty"`
	MarketAdded    *MarketAdded    `json:"MarketAdded,omitempty"`
	MarketRemoved  *MarketRef      `json:"MarketRemoved,omitempty"`
	MarketUpdateID *MarketUpdateID `json:"MarketUpdateId,omitempty"`
}

func NewOrderCreatedEvent(order *enginev1.Order) *OrderChangeEvent {
	copied := *order
	return &OrderChangeEvent{OrderCreated: &copied}
}

func NewOrderFilledEvent(order *enginev1.Order) *OrderChangeEvent {
	return &OrderChangeEvent{OrderFilled: &OrderFill{
		OrderID:           order.OrderID,
		Symbol:            order.Symbol,
		FilledQuantity:    order.FilledQuantity,
		RemainingQuantity: order.RemainingQuantity,
		Status:            order.Status,
	}}
}

func NewOrderRemovedEvent(order *enginev1.Order) *OrderChangeEvent {
	return &OrderChangeEvent{OrderRemoved: &OrderRemoval{OrderID: order.OrderID, Symbol: order.Symbol}}
}

func NewEventAddedEvent(eventID int64, markets map[string]enginev1.EventMarket, endDate *time.Time) *OrderChangeEvent {
	infos := make([]MarketInfo, 0, len(markets))
	for _, market := range markets {
		infos = append(infos, MarketInfo{
			MarketID: market.MarketID,
			Outcomes: market.Outcomes,
			TokenIDs: market.TokenIDs,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].MarketID < infos[j].MarketID })
	return &OrderChangeEvent{EventAdded: &EventAdded{EventID: eventID, Markets: infos, EndDate: endDate}}
}

func NewMarketAddedEvent(eventID int64, market enginev1.EventMarket) *OrderChangeEvent {
	return &OrderChangeEvent{MarketAdded: &MarketAdded{
		EventID: eventID,
		Market:  MarketInfo{MarketID: market.MarketID, Outcomes: market.Outcomes, TokenIDs: market.TokenIDs},
	}}
}

func NewEventRemovedEvent(eventID int64) *OrderChangeEvent {
	return &OrderChangeEvent{EventRemoved: &eventID}
}

func NewMarketRemovedEvent(eventID int64, marketID int16) *OrderChangeEvent {
	return &OrderChangeEvent{MarketRemoved: &MarketRef{EventID: eventID, MarketID: marketID}}
}

func NewMarketUpdateIDEvent(eventID int64, marketID int16, updateID uint64) *OrderChangeEvent {
	return &OrderChangeEvent{MarketUpdateID: &MarketUpdateID{EventID: eventID, MarketID: marketID, UpdateID: updateID}}
}

// EventID returns the event the change belongs to. Store stream payloads of
// one event hash to the same publisher worker.
func (e *OrderChangeEvent) EventID() int64 {
	switch {
	case e.OrderCreated != nil:
		return e.OrderCreated.Symbol.EventID
	case e.OrderFilled != nil:
		return e.OrderFilled.Symbol.EventID
	case e.OrderRemoved != nil:
		return e.OrderRemoved.Symbol.EventID
	case e.EventAdded != nil:
		return e.EventAdded.EventID
	case e.EventRemoved != nil:
		return *e.EventRemoved
	case e.MarketAdded != nil:
		return e.MarketAdded.EventID
	case e.MarketRemoved != nil:
		return e.MarketRemoved.EventID
	case e.MarketUpdateID != nil:
		return e.MarketUpdateID.EventID
	}
	return 0
}

// HashKey partitions the store stream by event.
func (e *OrderChangeEvent) HashKey() string {
	return strconv.FormatInt(e.EventID(), 10)
}
