package enginev1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Input message type tags. Messages are flat JSON objects carrying their tag
// in the "types" field.
const (
	TypeSubmitOrder = "SubmitOrder"
	TypeCancelOrder = "CancelOrder"

	TypeAddOneEvent     = "AddOneEvent"
	TypeRemoveOneEvent  = "RemoveOneEvent"
	TypeAddOneMarket    = "AddOneMarket"
	TypeRemoveOneMarket = "RemoveOneMarket"
	TypeStopAllEvents   = "StopAllEvents"
	TypeResumeAllEvents = "ResumeAllEvents"
)

// SubmitOrderMessage asks the engine to match and possibly rest a new order.
type SubmitOrderMessage struct {
	Types   string           `json:"types"`
	OrderID string           `json:"order_id"`
	Symbol  PredictionSymbol `json:"symbol"`
	Side    OrderSide        `json:"side"`
	Type    OrderType        `json:"order_type"`
	// Quantity is on the QuantityScale grid. Must be zero for market buys
	// and positive for everything else.
	Quantity uint64 `json:"quantity"`
	// Price is on the PriceScale grid. Limit price for limit orders, floor
	// price for market sells, ignored for market buys.
	Price int32 `json:"price"`
	// Budget is the spend limit of a market buy in micro quote units.
	Budget      int64  `json:"budget"`
	UserID      int64  `json:"user_id"`
	PrivyID     string `json:"privy_id"`
	OutcomeName string `json:"outcome_name"`
	// LogOffset is the input log position this command was read from. The
	// reader sets it; it is not carried on the wire.
	LogOffset int64 `json:"-"`
}

// CancelOrderMessage asks the engine to remove a resting order. Only the
// order's owner may cancel it.
type CancelOrderMessage struct {
	Types     string           `json:"types"`
	Symbol    PredictionSymbol `json:"symbol"`
	OrderID   string           `json:"order_id"`
	UserID    int64            `json:"user_id"`
	LogOffset int64            `json:"-"`
}

// EventMarket describes one market of an event on the event input topic.
type EventMarket struct {
	MarketID int16    `json:"market_id"`
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"token_ids"`
}

// EventCreateMessage registers a new event with all its markets.
type EventCreateMessage struct {
	Types   string                 `json:"types"`
	EventID int64                  `json:"event_id"`
	Markets map[string]EventMarket `json:"markets"`
	// EndDate is absent for events without a fixed close time.
	EndDate *time.Time `json:"end_date"`
}

// EventCloseMessage removes an event and cancels its resting orders.
type EventCloseMessage struct {
	Types   string `json:"types"`
	EventID int64  `json:"event_id"`
}

// AddOneMarketMessage adds a market to an already registered event.
type AddOneMarketMessage struct {
	Types   string      `json:"types"`
	EventID int64       `json:"event_id"`
	Market  EventMarket `json:"market"`
}

// RemoveOneMarketMessage closes one market of an event.
type RemoveOneMarketMessage struct {
	Types    string `json:"types"`
	EventID  int64  `json:"event_id"`
	MarketID int16  `json:"market_id"`
}

// StopAllEventsMessage halts intake for every market when Stop is true.
type StopAllEventsMessage struct {
	Types string `json:"types"`
	Stop  bool   `json:"stop"`
}

// ResumeAllEventsMessage re-enables intake when Resume is true.
type ResumeAllEventsMessage struct {
	Types  string `json:"types"`
	Resume bool   `json:"resume"`
}

type messageEnvelope struct {
	Types string `json:"types"`
}

// DecodeOrderInput parses an order input payload into its concrete message
// type, either *SubmitOrderMessage or *CancelOrderMessage.
func DecodeOrderInput(data []byte) (any, error) {
	var envelope messageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode order input envelope: %w", err)
	}

	switch envelope.Types {
	case TypeSubmitOrder:
		var msg SubmitOrderMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode submit order: %w", err)
		}
		return &msg, nil
	case TypeCancelOrder:
		var msg CancelOrderMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode cancel order: %w", err)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown order input type: %q", envelope.Types)
	}
}

// DecodeEventInput parses an event input payload into its concrete message
// type.
func DecodeEventInput(data []byte) (any, error) {
	var envelope messageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event input envelope: %w", err)
	}

	var (
		msg any
		err error
	)

	switch envelope.Types {
	case TypeAddOneEvent:
		m := &EventCreateMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeRemoveOneEvent:
		m := &EventCloseMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeAddOneMarket:
		m := &AddOneMarketMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeRemoveOneMarket:
		m := &RemoveOneMarketMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeStopAllEvents:
		m := &StopAllEventsMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeResumeAllEvents:
		m := &ResumeAllEventsMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown event input type: %q", envelope.Types)
	}

	if err != nil {
		return nil, fmt.Errorf("decode event input %s: %w", envelope.Types, err)
	}
	return msg, nil
}
