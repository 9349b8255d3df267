package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	v9 "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	"github.com/purplecity/PredictionMarket/internal/usecase/eventmanager"
	"github.com/purplecity/PredictionMarket/internal/usecase/publisher"
	"github.com/purplecity/PredictionMarket/internal/usecase/snapshot"
	"github.com/purplecity/PredictionMarket/pkg/config"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

type fakeRedis struct {
	mu   sync.Mutex
	adds []*v9.XAddArgs
	sets map[string]any
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: make(map[string]any)}
}

func (f *fakeRedis) Connect(context.Context) error    { return nil }
func (f *fakeRedis) Disconnect(context.Context) error { return nil }
func (f *fakeRedis) Ping(context.Context) error       { return nil }
func (f *fakeRedis) Reconnect(context.Context) bool   { return true }

func (f *fakeRedis) Get(context.Context, string) (string, error) { return "", nil }

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key] = value
	return nil
}

func (f *fakeRedis) Del(context.Context, ...string) (int64, error) { return 0, nil }

func (f *fakeRedis) XAdd(_ context.Context, args *v9.XAddArgs) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, args)
	return "1-1", nil
}

func (f *fakeRedis) XLen(context.Context, string) (int64, error)                { return 0, nil }
func (f *fakeRedis) XRead(context.Context, *v9.XReadArgs) ([]v9.XStream, error) { return nil, nil }

type fakeConsumer struct {
	mu     sync.Mutex
	msgs   chan kafka.Message
	offset int64
	next   int64
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{msgs: make(chan kafka.Message, 64), offset: -1}
}

func (f *fakeConsumer) SetOffset(offset int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset = offset
	return nil
}

func (f *fakeConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-f.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeConsumer) Close() error { return nil }

func (f *fakeConsumer) feed(t *testing.T, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	f.mu.Lock()
	offset := f.next
	f.next++
	f.mu.Unlock()
	f.msgs <- kafka.Message{Offset: offset, Value: data}
}

func (f *fakeConsumer) seekOffset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

type testHarness struct {
	engine        *Engine
	keeper        *snapshot.Keeper
	manager       *eventmanager.Manager
	orderConsumer *fakeConsumer
	eventConsumer *fakeConsumer
}

func newTestHarness(t *testing.T, snapshotPath string) *testHarness {
	t.Helper()

	log, err := logger.NewLogger()
	require.NoError(t, err)

	cfg := &config.Config{
		SnapshotIntervalSeconds: 3600,
		DedupWindowSize:         100,
		SnapshotPath:            snapshotPath,
		PublisherWorkers:        2,
	}

	keeper := snapshot.NewKeeper()
	pub := publisher.NewPublisher(newFakeRedis(), cfg.PublisherWorkers, log,
		publisher.WithStoreObserver(keeper.Apply),
		publisher.WithOrderCursorObserver(keeper.CompleteOrder),
	)
	manager := eventmanager.NewManager(eventmanager.Config{}, pub, log)
	store := snapshot.NewFileStore(cfg.SnapshotPath, log)
	orderConsumer := newFakeConsumer()
	eventConsumer := newFakeConsumer()

	return &testHarness{
		engine:        NewEngine(manager, pub, keeper, store, orderConsumer, eventConsumer, log, cfg),
		keeper:        keeper,
		manager:       manager,
		orderConsumer: orderConsumer,
		eventConsumer: eventConsumer,
	}
}

func eventCreatePayload() *enginev1.EventCreateMessage {
	return &enginev1.EventCreateMessage{
		Types:   enginev1.TypeAddOneEvent,
		EventID: 10,
		Markets: map[string]enginev1.EventMarket{
			"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"yes", "no"}},
		},
	}
}

func submitPayload(orderID string) *enginev1.SubmitOrderMessage {
	return &enginev1.SubmitOrderMessage{
		Types:       enginev1.TypeSubmitOrder,
		OrderID:     orderID,
		Symbol:      enginev1.NewPredictionSymbol(10, 1, "yes"),
		Side:        enginev1.SideBuy,
		Type:        enginev1.TypeLimit,
		Quantity:    500,
		Price:       6000,
		UserID:      1,
		OutcomeName: "Yes",
	}
}

func TestEngine_OrderSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders_snapshot.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestHarness(t, path)
	require.NoError(t, first.engine.Start(ctx))

	first.eventConsumer.feed(t, eventCreatePayload())
	require.Eventually(t, func() bool {
		return first.manager.EventCount() == 1
	}, time.Second, 5*time.Millisecond)

	first.orderConsumer.feed(t, submitPayload("o1"))
	require.Eventually(t, func() bool {
		return first.keeper.OrderCount() == 1
	}, time.Second, 5*time.Millisecond)

	// A replay of the same command within the run is dropped.
	first.orderConsumer.feed(t, submitPayload("o1"))
	require.Eventually(t, func() bool {
		orderCursor, _ := first.keeper.Cursors()
		return orderCursor == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, first.keeper.OrderCount())

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, first.engine.Stop(stopCtx))

	// A fresh process resumes from the snapshot.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	second := newTestHarness(t, path)
	require.NoError(t, second.engine.Start(ctx2))

	assert.Equal(t, 1, second.keeper.OrderCount())
	assert.Equal(t, 1, second.manager.EventCount())

	// Readers seek past the offsets the snapshot already covers.
	require.Eventually(t, func() bool {
		return second.orderConsumer.seekOffset() == 2 && second.eventConsumer.seekOffset() == 1
	}, time.Second, 5*time.Millisecond)

	cancel2()
	stopCtx2, stopCancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel2()
	require.NoError(t, second.engine.Stop(stopCtx2))
}

func TestEngine_RejectedSubmitLeavesNoState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders_snapshot.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	harness := newTestHarness(t, path)
	require.NoError(t, harness.engine.Start(ctx))

	// No event registered: the submit is rejected, not matched.
	harness.orderConsumer.feed(t, submitPayload("o1"))
	require.Eventually(t, func() bool {
		orderCursor, _ := harness.keeper.Cursors()
		return orderCursor == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, harness.keeper.OrderCount())

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, harness.engine.Stop(stopCtx))
}
