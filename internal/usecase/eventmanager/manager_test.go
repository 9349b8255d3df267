package eventmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	snapshotv1 "github.com/purplecity/PredictionMarket/internal/domain/snapshot/v1"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// safeSink records emissions from concurrently running engines.
type safeSink struct {
	mu        sync.Mutex
	processor []outputv1.ProcessorMessage
	store     []*outputv1.OrderChangeEvent
}

func (s *safeSink) PublishProcessor(msg outputv1.ProcessorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processor = append(s.processor, msg)
}

func (s *safeSink) PublishStore(event *outputv1.OrderChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = append(s.store, event)
}

func (s *safeSink) PublishDepth(*outputv1.WebSocketDepth)                {}
func (s *safeSink) PublishPriceChanges(*outputv1.WebSocketPriceChanges) {}
func (s *safeSink) OrderProcessed(int64)                                {}

func (s *safeSink) processorSnapshot() []outputv1.ProcessorMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outputv1.ProcessorMessage(nil), s.processor...)
}

func (s *safeSink) storeSnapshot() []*outputv1.OrderChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*outputv1.OrderChangeEvent(nil), s.store...)
}

func newTestManager(t *testing.T) (*Manager, *safeSink) {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)
	sink := &safeSink{}
	return NewManager(Config{}, sink, log), sink
}

func eventMsg(eventID int64, endDate *time.Time) *enginev1.EventCreateMessage {
	return &enginev1.EventCreateMessage{
		Types:   enginev1.TypeAddOneEvent,
		EventID: eventID,
		EndDate: endDate,
		Markets: map[string]enginev1.EventMarket{
			"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"yes", "no"}},
		},
	}
}

func TestManager_RouteUnknownEvent(t *testing.T) {
	mgr, _ := newTestManager(t)

	err := mgr.Submit(&enginev1.SubmitOrderMessage{
		Symbol: enginev1.NewPredictionSymbol(99, 1, "yes"),
	})
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.OrderUnknownSymbolError))
}

func TestManager_RouteUnknownMarket(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.AddEvent(eventMsg(10, nil)))

	err := mgr.Submit(&enginev1.SubmitOrderMessage{
		Symbol: enginev1.NewPredictionSymbol(10, 9, "yes"),
	})
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.OrderUnknownSymbolError))
}

func TestManager_StopAndResume(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.AddEvent(eventMsg(10, nil)))

	mgr.StopAll()
	assert.True(t, mgr.Stopped())

	err := mgr.Submit(&enginev1.SubmitOrderMessage{
		Symbol: enginev1.NewPredictionSymbol(10, 1, "yes"),
	})
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.EngineStoppedError))

	mgr.ResumeAll()
	assert.False(t, mgr.Stopped())
}

func TestManager_ExpiredEventRejectsOrders(t *testing.T) {
	mgr, _ := newTestManager(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, mgr.AddEvent(eventMsg(10, &past)))

	err := mgr.Submit(&enginev1.SubmitOrderMessage{
		Symbol: enginev1.NewPredictionSymbol(10, 1, "yes"),
	})
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.EventExpiredError))
}

func TestManager_AddEventIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.NoError(t, mgr.AddEvent(eventMsg(10, nil)))
	require.NoError(t, mgr.AddEvent(eventMsg(10, nil)))
	assert.Equal(t, 1, mgr.EventCount())
}

func TestManager_HandleEventDispatch(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.NoError(t, mgr.HandleEvent(eventMsg(10, nil)))
	assert.Equal(t, 1, mgr.EventCount())

	require.NoError(t, mgr.HandleEvent(&enginev1.StopAllEventsMessage{Types: enginev1.TypeStopAllEvents, Stop: true}))
	assert.True(t, mgr.Stopped())
	require.NoError(t, mgr.HandleEvent(&enginev1.ResumeAllEventsMessage{Types: enginev1.TypeResumeAllEvents, Resume: true}))
	assert.False(t, mgr.Stopped())

	err := mgr.HandleEvent("not a message")
	require.Error(t, err)
}

func TestManager_RemoveEventCancelsRestingOrders(t *testing.T) {
	mgr, sink := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mgr.AddEvent(eventMsg(10, nil)))
	mgr.Start(ctx)

	require.NoError(t, mgr.Submit(&enginev1.SubmitOrderMessage{
		Types:    enginev1.TypeSubmitOrder,
		OrderID:  "o1",
		Symbol:   enginev1.NewPredictionSymbol(10, 1, "yes"),
		Side:     enginev1.SideBuy,
		Type:     enginev1.TypeLimit,
		Quantity: 100,
		Price:    6000,
		UserID:   1,
	}))

	require.Eventually(t, func() bool {
		for _, msg := range sink.processorSnapshot() {
			if m, ok := msg.(*outputv1.OrderSubmittedMessage); ok && m.Order.OrderID == "o1" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, mgr.RemoveEvent(10))
	assert.Equal(t, 0, mgr.EventCount())

	var cancelled *outputv1.OrderCancelledMessage
	for _, msg := range sink.processorSnapshot() {
		if m, ok := msg.(*outputv1.OrderCancelledMessage); ok {
			cancelled = m
		}
	}
	require.NotNil(t, cancelled)
	assert.Equal(t, "o1", cancelled.OrderID)
	assert.Equal(t, outputv1.CancelReasonEventClosed, cancelled.Reason)

	var removed bool
	for _, event := range sink.storeSnapshot() {
		if event.EventRemoved != nil && *event.EventRemoved == 10 {
			removed = true
		}
	}
	assert.True(t, removed)

	cancel()
	mgr.Wait()
}

func TestManager_ExpirySweeperRemovesEndedEvents(t *testing.T) {
	log, err := logger.NewLogger()
	require.NoError(t, err)
	sink := &safeSink{}
	mgr := NewManager(Config{ExpiryCheckInterval: 10 * time.Millisecond}, sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	end := time.Now().Add(150 * time.Millisecond)
	require.NoError(t, mgr.AddEvent(eventMsg(10, &end)))
	mgr.Start(ctx)

	// The event is live until its end date, so an order can still rest.
	require.NoError(t, mgr.Submit(&enginev1.SubmitOrderMessage{
		Types:    enginev1.TypeSubmitOrder,
		OrderID:  "o1",
		Symbol:   enginev1.NewPredictionSymbol(10, 1, "yes"),
		Side:     enginev1.SideBuy,
		Type:     enginev1.TypeLimit,
		Quantity: 100,
		Price:    6000,
		UserID:   1,
	}))
	require.Eventually(t, func() bool {
		for _, msg := range sink.processorSnapshot() {
			if m, ok := msg.(*outputv1.OrderSubmittedMessage); ok && m.Order.OrderID == "o1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Once the end date passes, the sweeper removes the event and the resting
	// order is cancelled.
	require.Eventually(t, func() bool {
		return mgr.EventCount() == 0
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, msg := range sink.processorSnapshot() {
			if m, ok := msg.(*outputv1.OrderCancelledMessage); ok && m.OrderID == "o1" {
				return m.Reason == outputv1.CancelReasonEventClosed
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	removals := func() int {
		count := 0
		for _, event := range sink.storeSnapshot() {
			if event.EventRemoved != nil && *event.EventRemoved == 10 {
				count++
			}
		}
		return count
	}
	require.Eventually(t, func() bool { return removals() == 1 }, time.Second, 5*time.Millisecond)

	// A later sweep finds nothing left; the removal is not emitted twice.
	mgr.sweepExpired()
	assert.Equal(t, 0, mgr.EventCount())
	assert.Equal(t, 1, removals())

	cancel()
	mgr.Wait()
}

func TestManager_RestoreFromSnapshot(t *testing.T) {
	mgr, _ := newTestManager(t)

	order, err := enginev1.NewOrder("o1", enginev1.NewPredictionSymbol(10, 1, "yes"), enginev1.SideBuy, enginev1.TypeLimit, 100, 6000, 1, "", "Yes")
	require.NoError(t, err)
	order.OrderNum = 3

	past := time.Now().Add(-2 * time.Hour)
	snap := &snapshotv1.AllOrdersSnapshot{
		Events: map[string]snapshotv1.SnapshotEvent{
			"10": {
				EventID: 10,
				Markets: map[string]snapshotv1.SnapshotMarket{
					"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"yes", "no"}, UpdateID: 21},
				},
			},
			"11": {
				EventID: 11,
				EndDate: &past,
				Markets: map[string]snapshotv1.SnapshotMarket{
					"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"yes", "no"}},
				},
			},
		},
		Orders: []enginev1.Order{*order},
	}

	require.NoError(t, mgr.RestoreFromSnapshot(snap))

	// The expired event is dropped, the live one is rebuilt.
	assert.Equal(t, 1, mgr.EventCount())

	_, err2 := mgr.route(enginev1.NewPredictionSymbol(10, 1, "yes"))
	assert.NoError(t, err2)
	_, err2 = mgr.route(enginev1.NewPredictionSymbol(11, 1, "yes"))
	assert.Error(t, err2)
}
