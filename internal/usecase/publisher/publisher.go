package publisher

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	v9 "github.com/redis/go-redis/v9"

	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	"github.com/purplecity/PredictionMarket/pkg/logger"
	"github.com/purplecity/PredictionMarket/pkg/redis"
)

// task is one stream entry waiting for a worker.
type task struct {
	stream  string
	key     string
	payload []byte
	// maxLen trims the stream approximately when positive.
	maxLen int64
	// cacheKey, when set, also stores the payload under a plain key.
	cacheKey string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStoreObserver registers a callback invoked synchronously for every
// store stream event, before it is queued for Redis. The snapshot keeper
// hangs off this hook so its image always reflects what was emitted.
func WithStoreObserver(fn func(event *outputv1.OrderChangeEvent)) Option {
	return func(p *Publisher) {
		p.storeObserver = fn
	}
}

// WithOrderCursorObserver registers a callback invoked when a market engine
// finishes one input log entry. It runs in the engine goroutine, after the
// entry's store events went through the store observer.
func WithOrderCursorObserver(fn func(logOffset int64)) Option {
	return func(p *Publisher) {
		p.cursorObserver = fn
	}
}

// Publisher fans engine output out to the Redis streams. Tasks are routed to
// workers by hashing the payload's partition key, so entries of one event or
// market keep their order while different markets publish in parallel.
type Publisher struct {
	client  redis.Client
	logger  *logger.Logger
	workers []chan task
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool

	storeObserver  func(event *outputv1.OrderChangeEvent)
	cursorObserver func(logOffset int64)
}

// NewPublisher builds a publisher with the given worker count.
func NewPublisher(client redis.Client, workerCount int, log *logger.Logger, opts ...Option) *Publisher {
	if workerCount <= 0 {
		workerCount = 1
	}

	p := &Publisher{
		client:  client,
		logger:  log,
		workers: make([]chan task, workerCount),
	}
	for i := range p.workers {
		p.workers[i] = make(chan task, 1024)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. The context bounds every Redis call.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i, ch := range p.workers {
		p.wg.Add(1)
		go p.runWorker(ctx, i, ch)
	}
}

// Stop closes the queues and waits for the workers to drain them.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	for _, ch := range p.workers {
		close(ch)
	}
	p.wg.Wait()
}

// PublishProcessor queues a processor stream message.
func (p *Publisher) PublishProcessor(msg outputv1.ProcessorMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error(err, logger.Field{Key: "stream", Value: outputv1.ProcessorStream})
		return
	}
	p.enqueue(msg.HashKey(), task{
		stream:  outputv1.ProcessorStream,
		key:     outputv1.ProcessorKey,
		payload: payload,
	})
}

// PublishStore feeds the in-process observer and queues a store stream event.
func (p *Publisher) PublishStore(event *outputv1.OrderChangeEvent) {
	if p.storeObserver != nil {
		p.storeObserver(event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(err, logger.Field{Key: "stream", Value: outputv1.StoreStream})
		return
	}
	p.enqueue(event.HashKey(), task{
		stream:  outputv1.StoreStream,
		key:     outputv1.StoreKey,
		payload: payload,
	})
}

// PublishDepth queues a depth stream payload and refreshes the depth cache
// key of the market.
func (p *Publisher) PublishDepth(depth *outputv1.WebSocketDepth) {
	payload, err := json.Marshal(depth)
	if err != nil {
		p.logger.Error(err, logger.Field{Key: "stream", Value: outputv1.DepthStream})
		return
	}
	p.enqueue(depth.HashKey(), task{
		stream:   outputv1.DepthStream,
		key:      outputv1.DepthKey,
		payload:  payload,
		cacheKey: outputv1.DepthCachePrefix + depth.HashKey(),
	})
}

// PublishPriceChanges queues a websocket stream payload. The stream is
// capped; consumers that fall behind lose the oldest entries.
func (p *Publisher) PublishPriceChanges(changes *outputv1.WebSocketPriceChanges) {
	payload, err := json.Marshal(changes)
	if err != nil {
		p.logger.Error(err, logger.Field{Key: "stream", Value: outputv1.WebsocketStream})
		return
	}
	p.enqueue(changes.HashKey(), task{
		stream:  outputv1.WebsocketStream,
		key:     outputv1.WebsocketKey,
		payload: payload,
		maxLen:  outputv1.WebsocketStreamMaxLen,
	})
}

// OrderProcessed forwards an input log completion to the cursor observer.
// Nothing is queued for Redis; the offset only matters to the snapshot.
func (p *Publisher) OrderProcessed(logOffset int64) {
	if p.cursorObserver != nil {
		p.cursorObserver(logOffset)
	}
}

func (p *Publisher) enqueue(hashKey string, t task) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hashKey))
	p.workers[int(h.Sum32())%len(p.workers)] <- t
}

func (p *Publisher) runWorker(ctx context.Context, id int, ch chan task) {
	defer p.wg.Done()

	for t := range ch {
		p.write(ctx, id, t)
	}
}

// write pushes one entry, reconnecting once on failure. An entry that still
// fails after a reconnect is dropped with an error log; blocking the worker
// forever would back the engines up behind a dead Redis.
func (p *Publisher) write(ctx context.Context, workerID int, t task) {
	args := &v9.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{t.key: t.payload},
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}

	_, err := p.client.XAdd(ctx, args)
	if err != nil {
		if !p.client.Reconnect(ctx) {
			p.logger.Error(err,
				logger.Field{Key: "worker", Value: workerID},
				logger.Field{Key: "stream", Value: t.stream},
			)
			return
		}
		if _, err = p.client.XAdd(ctx, args); err != nil {
			p.logger.Error(err,
				logger.Field{Key: "worker", Value: workerID},
				logger.Field{Key: "stream", Value: t.stream},
			)
			return
		}
	}

	if t.cacheKey != "" {
		if err := p.client.Set(ctx, t.cacheKey, t.payload, 0); err != nil {
			p.logger.Error(err,
				logger.Field{Key: "worker", Value: workerID},
				logger.Field{Key: "key", Value: t.cacheKey},
			)
		}
	}
}
