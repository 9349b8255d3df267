package snapshot

import (
	"strconv"
	"sync"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	snapshotv1 "github.com/purplecity/PredictionMarket/internal/domain/snapshot/v1"
)

// Keeper mirrors the persisted engine state in memory. It is fed every store
// stream event through the publisher's observer hook, so writing a snapshot
// never has to stop the engines; the keeper's image is consistent with what
// was emitted up to that point.
type Keeper struct {
	mu          sync.Mutex
	events      map[int64]snapshotv1.SnapshotEvent
	orders      map[string]enginev1.Order
	orderCursor int64
	eventCursor int64

	// pendingOrders holds order topic offsets whose commands are still being
	// processed, in read order. orderDone flags the ones already completed.
	pendingOrders []int64
	orderDone     map[int64]bool
}

// NewKeeper returns an empty keeper.
func NewKeeper() *Keeper {
	return &Keeper{
		events:      make(map[int64]snapshotv1.SnapshotEvent),
		orders:      make(map[string]enginev1.Order),
		orderCursor: -1,
		eventCursor: -1,
		orderDone:   make(map[int64]bool),
	}
}

// Prime seeds the keeper from a loaded snapshot.
func (k *Keeper) Prime(snap *snapshotv1.AllOrdersSnapshot) {
	if snap == nil {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for _, event := range snap.Events {
		copied := event
		copied.Markets = make(map[string]snapshotv1.SnapshotMarket, len(event.Markets))
		for key, market := range event.Markets {
			copied.Markets[key] = market
		}
		k.events[event.EventID] = copied
	}
	for _, order := range snap.Orders {
		if order.IsActive() {
			k.orders[order.OrderID] = order
		}
	}
	k.orderCursor = snap.OrderCursor
	k.eventCursor = snap.EventCursor
}

// Apply folds one store event into the image.
func (k *Keeper) Apply(event *outputv1.OrderChangeEvent) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case event.OrderCreated != nil:
		k.orders[event.OrderCreated.OrderID] = *event.OrderCreated

	case event.OrderFilled != nil:
		fill := event.OrderFilled
		if fill.RemainingQuantity == 0 {
			delete(k.orders, fill.OrderID)
			return
		}
		if order, ok := k.orders[fill.OrderID]; ok {
			order.FilledQuantity = fill.FilledQuantity
			order.RemainingQuantity = fill.RemainingQuantity
			order.Status = fill.Status
			k.orders[fill.OrderID] = order
		}

	case event.OrderRemoved != nil:
		delete(k.orders, event.OrderRemoved.OrderID)

	case event.EventAdded != nil:
		k.applyEventAdded(event.EventAdded)

	case event.EventRemoved != nil:
		eventID := *event.EventRemoved
		delete(k.events, eventID)
		for id, order := range k.orders {
			if order.Symbol.EventID == eventID {
				delete(k.orders, id)
			}
		}

	case event.MarketAdded != nil:
		if entry, ok := k.events[event.MarketAdded.EventID]; ok {
			entry.Markets[marketKey(event.MarketAdded.Market.MarketID)] = snapshotMarket(event.MarketAdded.Market)
		}

	case event.MarketRemoved != nil:
		ref := event.MarketRemoved
		if entry, ok := k.events[ref.EventID]; ok {
			delete(entry.Markets, marketKey(ref.MarketID))
		}
		for id, order := range k.orders {
			if order.Symbol.EventID == ref.EventID && order.Symbol.MarketID == ref.MarketID {
				delete(k.orders, id)
			}
		}

	case event.MarketUpdateID != nil:
		update := event.MarketUpdateID
		if entry, ok := k.events[update.EventID]; ok {
			key := marketKey(update.MarketID)
			if market, ok := entry.Markets[key]; ok {
				market.UpdateID = update.UpdateID
				entry.Markets[key] = market
			}
		}
	}
}

func (k *Keeper) applyEventAdded(added *outputv1.EventAdded) {
	entry, ok := k.events[added.EventID]
	if !ok {
		entry = snapshotv1.SnapshotEvent{
			EventID: added.EventID,
			EndDate: added.EndDate,
			Markets: make(map[string]snapshotv1.SnapshotMarket, len(added.Markets)),
		}
	}
	for _, market := range added.Markets {
		key := marketKey(market.MarketID)
		if _, exists := entry.Markets[key]; !exists {
			entry.Markets[key] = snapshotMarket(market)
		}
	}
	k.events[added.EventID] = entry
}

// BeginOrder registers an order topic offset whose command is about to be
// processed. The cursor does not move past it until CompleteOrder is called,
// so a snapshot taken in between cannot pin an offset whose order is still
// sitting in a command channel.
func (k *Keeper) BeginOrder(offset int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pendingOrders = append(k.pendingOrders, offset)
	k.orderDone[offset] = false
}

// CompleteOrder marks an offset as fully folded into the image and advances
// the cursor over every contiguous completed offset. Commands on different
// markets finish out of read order; the cursor follows the slowest one.
func (k *Keeper) CompleteOrder(offset int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.orderDone[offset]; !ok {
		return
	}
	k.orderDone[offset] = true

	for len(k.pendingOrders) > 0 {
		head := k.pendingOrders[0]
		if !k.orderDone[head] {
			return
		}
		delete(k.orderDone, head)
		k.pendingOrders = k.pendingOrders[1:]
		if head > k.orderCursor {
			k.orderCursor = head
		}
	}
}

// SetEventCursor records the highest event topic offset folded in.
func (k *Keeper) SetEventCursor(offset int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if offset > k.eventCursor {
		k.eventCursor = offset
	}
}

// Cursors returns the current input offsets.
func (k *Keeper) Cursors() (orderCursor, eventCursor int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.orderCursor, k.eventCursor
}

// Snapshot copies the image into a persistable document.
func (k *Keeper) Snapshot() *snapshotv1.AllOrdersSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	snap := &snapshotv1.AllOrdersSnapshot{
		Events:      make(map[string]snapshotv1.SnapshotEvent, len(k.events)),
		Orders:      make([]enginev1.Order, 0, len(k.orders)),
		OrderCursor: k.orderCursor,
		EventCursor: k.eventCursor,
		Timestamp:   time.Now().UnixMilli(),
	}

	for id, event := range k.events {
		copied := event
		copied.Markets = make(map[string]snapshotv1.SnapshotMarket, len(event.Markets))
		for key, market := range event.Markets {
			copied.Markets[key] = market
		}
		snap.Events[strconv.FormatInt(id, 10)] = copied
	}
	for _, order := range k.orders {
		snap.Orders = append(snap.Orders, order)
	}

	return snap
}

// OrderCount returns how many active orders the image holds.
func (k *Keeper) OrderCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.orders)
}

func marketKey(marketID int16) string {
	return strconv.FormatInt(int64(marketID), 10)
}

func snapshotMarket(info outputv1.MarketInfo) snapshotv1.SnapshotMarket {
	return snapshotv1.SnapshotMarket{
		MarketID: info.MarketID,
		Outcomes: info.Outcomes,
		TokenIDs: info.TokenIDs,
	}
}
