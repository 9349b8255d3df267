package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return log
}

func testOrder(t *testing.T, id string, quantity uint64) *enginev1.Order {
	t.Helper()
	order, err := enginev1.NewOrder(id, enginev1.NewPredictionSymbol(10, 1, "yes"), enginev1.SideBuy, enginev1.TypeLimit, quantity, 6000, 1, "", "Yes")
	require.NoError(t, err)
	return order
}

func registerEvent(k *Keeper, eventID int64) {
	k.Apply(outputv1.NewEventAddedEvent(eventID, map[string]enginev1.EventMarket{
		"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"yes", "no"}},
	}, nil))
}

func TestKeeper_OrderLifecycle(t *testing.T) {
	keeper := NewKeeper()
	registerEvent(keeper, 10)

	order := testOrder(t, "o1", 500)
	keeper.Apply(outputv1.NewOrderCreatedEvent(order))
	assert.Equal(t, 1, keeper.OrderCount())

	// Partial fill updates the image.
	order.ApplyFill(200)
	keeper.Apply(outputv1.NewOrderFilledEvent(order))
	snap := keeper.Snapshot()
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, uint64(300), snap.Orders[0].RemainingQuantity)
	assert.Equal(t, enginev1.StatusPartiallyFilled, snap.Orders[0].Status)

	// Full fill drops the order.
	order.ApplyFill(300)
	keeper.Apply(outputv1.NewOrderFilledEvent(order))
	assert.Equal(t, 0, keeper.OrderCount())
}

func TestKeeper_EventRemovalDropsOrders(t *testing.T) {
	keeper := NewKeeper()
	registerEvent(keeper, 10)
	registerEvent(keeper, 11)

	keeper.Apply(outputv1.NewOrderCreatedEvent(testOrder(t, "o1", 100)))

	other, err := enginev1.NewOrder("o2", enginev1.NewPredictionSymbol(11, 1, "yes"), enginev1.SideBuy, enginev1.TypeLimit, 100, 5000, 2, "", "Yes")
	require.NoError(t, err)
	keeper.Apply(outputv1.NewOrderCreatedEvent(other))

	keeper.Apply(outputv1.NewEventRemovedEvent(10))

	snap := keeper.Snapshot()
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, "o2", snap.Orders[0].OrderID)
	assert.NotContains(t, snap.Events, "10")
	assert.Contains(t, snap.Events, "11")
}

func TestKeeper_MarketUpdateID(t *testing.T) {
	keeper := NewKeeper()
	registerEvent(keeper, 10)

	keeper.Apply(outputv1.NewMarketUpdateIDEvent(10, 1, 42))

	snap := keeper.Snapshot()
	assert.Equal(t, uint64(42), snap.Events["10"].Markets["1"].UpdateID)
}

func TestKeeper_Cursors(t *testing.T) {
	keeper := NewKeeper()

	keeper.BeginOrder(5)
	keeper.CompleteOrder(5)
	keeper.SetEventCursor(9)
	keeper.SetEventCursor(3) // regressions are ignored

	orderCursor, eventCursor := keeper.Cursors()
	assert.Equal(t, int64(5), orderCursor)
	assert.Equal(t, int64(9), eventCursor)
}

func TestKeeper_OrderCursorWaitsForCompletion(t *testing.T) {
	keeper := NewKeeper()

	keeper.BeginOrder(0)
	keeper.BeginOrder(1)
	keeper.BeginOrder(2)

	// A later offset finishing first must not drag the cursor past an offset
	// whose command is still in flight; a snapshot taken now would otherwise
	// lose that command on crash replay.
	keeper.CompleteOrder(1)
	orderCursor, _ := keeper.Cursors()
	assert.Equal(t, int64(-1), orderCursor)

	keeper.CompleteOrder(0)
	orderCursor, _ = keeper.Cursors()
	assert.Equal(t, int64(1), orderCursor)

	keeper.CompleteOrder(2)
	orderCursor, _ = keeper.Cursors()
	assert.Equal(t, int64(2), orderCursor)

	// Offsets never begun are ignored.
	keeper.CompleteOrder(9)
	orderCursor, _ = keeper.Cursors()
	assert.Equal(t, int64(2), orderCursor)
}

func TestKeeper_PrimeRoundTrip(t *testing.T) {
	keeper := NewKeeper()
	registerEvent(keeper, 10)
	keeper.Apply(outputv1.NewOrderCreatedEvent(testOrder(t, "o1", 100)))
	keeper.BeginOrder(7)
	keeper.CompleteOrder(7)
	keeper.SetEventCursor(2)

	snap := keeper.Snapshot()

	restored := NewKeeper()
	restored.Prime(snap)

	again := restored.Snapshot()
	assert.Equal(t, snap.Events, again.Events)
	assert.Equal(t, snap.Orders, again.Orders)
	assert.Equal(t, int64(7), again.OrderCursor)
	assert.Equal(t, int64(2), again.EventCursor)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "orders_snapshot.json")
	store := NewFileStore(path, testLogger(t))
	ctx := context.Background()

	// No file yet: fresh start.
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	keeper := NewKeeper()
	registerEvent(keeper, 10)
	keeper.Apply(outputv1.NewOrderCreatedEvent(testOrder(t, "o1", 100)))
	keeper.BeginOrder(7)
	keeper.CompleteOrder(7)

	written := keeper.Snapshot()
	require.NoError(t, store.Save(ctx, written))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, written.Events, loaded.Events)
	assert.Equal(t, written.Orders, loaded.Orders)
	assert.Equal(t, int64(7), loaded.OrderCursor)

	// Overwrite with a newer snapshot.
	keeper.BeginOrder(9)
	keeper.CompleteOrder(9)
	require.NoError(t, store.Save(ctx, keeper.Snapshot()))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), loaded.OrderCursor)

	// The write is atomic: no temp files left behind.
	entries, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
