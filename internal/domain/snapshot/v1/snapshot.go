package snapshotv1

import (
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// SnapshotMarket is one market of an event as persisted in a snapshot.
type SnapshotMarket struct {
	MarketID int16    `json:"market_id"`
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"token_ids"`
	// UpdateID is the last per-market update counter value, restored on load
	// so numbering continues instead of restarting at zero.
	UpdateID uint64 `json:"update_id"`
}

// SnapshotEvent is one registered event as persisted in a snapshot.
type SnapshotEvent struct {
	EventID int64 `json:"event_id"`
	// Markets is keyed by the decimal market id.
	Markets map[string]SnapshotMarket `json:"markets"`
	EndDate *time.Time                `json:"end_date"`
}

// AllOrdersSnapshot is the full persisted engine state: every registered
// event and every active order, plus the input offsets already folded in.
type AllOrdersSnapshot struct {
	// Events is keyed by the decimal event id.
	Events map[string]SnapshotEvent `json:"events"`
	Orders []enginev1.Order         `json:"orders"`

	// OrderCursor and EventCursor are the highest input topic offsets whose
	// effects are contained in this snapshot. Replay resumes after them.
	OrderCursor int64 `json:"order_cursor"`
	EventCursor int64 `json:"event_cursor"`

	Timestamp int64 `json:"timestamp"`
}

// NewAllOrdersSnapshot returns an empty snapshot with cursors meaning
// "nothing consumed yet".
func NewAllOrdersSnapshot() *AllOrdersSnapshot {
	return &AllOrdersSnapshot{
		Events:      make(map[string]SnapshotEvent),
		OrderCursor: -1,
		EventCursor: -1,
	}
}
