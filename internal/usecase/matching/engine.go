package matching

import (
	"context"
	"sort"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	orderbookv1 "github.com/purplecity/PredictionMarket/internal/domain/orderbook/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// Config tunes one market engine.
type Config struct {
	// TickInterval is how often depth and price change updates are published.
	TickInterval time.Duration
	// MaxDepthReported caps the levels per side in depth stream payloads.
	MaxDepthReported int
	// CommandCapacity sizes the command channel.
	CommandCapacity int
	// CancelBatchSize is how many cancellations share one update id during
	// event or market teardown.
	CancelBatchSize int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MaxDepthReported <= 0 {
		c.MaxDepthReported = 50
	}
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = 1024
	}
	if c.CancelBatchSize <= 0 {
		c.CancelBatchSize = 100
	}
	return c
}

type cancelAllRequest struct {
	reason string
	stop   bool
	done   chan struct{}
}

type command struct {
	submit    *enginev1.SubmitOrderMessage
	cancel    *enginev1.CancelOrderMessage
	cancelAll *cancelAllRequest
}

// MarketEngine matches orders for one market of one event. It owns the books
// of both outcome tokens and runs as a single goroutine; all access goes
// through the command channel, so no locking is needed on the books.
type MarketEngine struct {
	eventID  int64
	marketID int16
	// tokens holds both token ids; every resting order appears in both books,
	// once at its own price and once at the converted price.
	tokens   [2]string
	outcomes map[string]string
	books    map[string]*orderbookv1.OrderBook

	orderNum uint64
	updateID uint64
	// latestTrade holds the last traded book price per token, zero until the
	// first fill.
	latestTrade map[string]int32
	prevLevels  map[string]*levelImage
	dirty       bool

	cfg      Config
	sink     Sink
	logger   *logger.Logger
	commands chan command
	done     chan struct{}
}

// NewMarketEngine builds an engine for one market. Call Run to start it.
func NewMarketEngine(eventID int64, marketID int16, market enginev1.EventMarket, cfg Config, sink Sink, log *logger.Logger) *MarketEngine {
	cfg = cfg.withDefaults()

	e := &MarketEngine{
		eventID:  eventID,
		marketID: marketID,
		outcomes: make(map[string]string, 2),
		books:    make(map[string]*orderbookv1.OrderBook, 2),

		latestTrade: make(map[string]int32, 2),
		prevLevels:  make(map[string]*levelImage, 2),

		cfg: cfg,
		sink: sink,
		logger: log.WithFields(
			logger.Field{Key: "event_id", Value: eventID},
			logger.Field{Key: "market_id", Value: marketID},
		),
		commands: make(chan command, cfg.CommandCapacity),
		done:     make(chan struct{}),
	}

	for i, tokenID := range market.TokenIDs {
		if i >= 2 {
			break
		}
		e.tokens[i] = tokenID
		e.books[tokenID] = orderbookv1.NewOrderBook(enginev1.NewPredictionSymbol(eventID, marketID, tokenID))
		e.prevLevels[tokenID] = newLevelImage()
		if i < len(market.Outcomes) {
			e.outcomes[tokenID] = market.Outcomes[i]
		}
	}

	return e
}

// Restore re-seeds the books from persisted orders and resumes the counters.
// It must be called before Run. Orders are replayed in order number order so
// queue priority inside a level survives the restart.
func (e *MarketEngine) Restore(orders []*enginev1.Order, updateID uint64) error {
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNum < orders[j].OrderNum })

	for _, order := range orders {
		own := e.books[order.Symbol.TokenID]
		if own == nil {
			return errors.NewErrorDetails("order token not in market", errors.OrderUnknownSymbolError, order.OrderID)
		}
		if err := own.AddOrder(order); err != nil {
			return err
		}
		if err := e.otherBook(order.Symbol.TokenID).AddCrossOrder(order); err != nil {
			return err
		}
		if order.OrderNum >= e.orderNum {
			e.orderNum = order.OrderNum + 1
		}
	}

	e.updateID = updateID
	return nil
}

// Run processes commands and publishes periodic depth updates until the
// context is cancelled or a teardown request asks the engine to stop.
// Cancelling the context does not cancel resting orders; they survive in the
// next snapshot.
func (e *MarketEngine) Run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Info("market engine started")

	for {
		select {
		case <-ctx.Done():
			e.drainCommands()
			e.logger.Info("market engine stopped")
			return
		case cmd := <-e.commands:
			switch {
			case cmd.submit != nil:
				e.handleSubmit(cmd.submit)
				e.sink.OrderProcessed(cmd.submit.LogOffset)
			case cmd.cancel != nil:
				e.handleCancel(cmd.cancel)
				e.sink.OrderProcessed(cmd.cancel.LogOffset)
			case cmd.cancelAll != nil:
				e.handleCancelAll(cmd.cancelAll.reason)
				e.handleTick()
				close(cmd.cancelAll.done)
				if cmd.cancelAll.stop {
					e.rejectPending()
					e.logger.Info("market engine torn down")
					return
				}
			}
		case <-ticker.C:
			e.handleTick()
		}
	}
}

// drainCommands processes commands already queued when shutdown arrives, so
// accepted input is never silently dropped, then flushes a last depth update.
func (e *MarketEngine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			switch {
			case cmd.submit != nil:
				e.handleSubmit(cmd.submit)
				e.sink.OrderProcessed(cmd.submit.LogOffset)
			case cmd.cancel != nil:
				e.handleCancel(cmd.cancel)
				e.sink.OrderProcessed(cmd.cancel.LogOffset)
			case cmd.cancelAll != nil:
				e.handleCancelAll(cmd.cancelAll.reason)
				close(cmd.cancelAll.done)
			}
		default:
			e.handleTick()
			return
		}
	}
}

// rejectPending rejects commands that were still queued when the market was
// torn down. Their senders get a rejection instead of silence, and the input
// cursor can move past their offsets.
func (e *MarketEngine) rejectPending() {
	for {
		select {
		case cmd := <-e.commands:
			switch {
			case cmd.submit != nil:
				m := cmd.submit
				e.sink.PublishProcessor(outputv1.NewOrderRejected(m.OrderID, m.Symbol, m.UserID, "market no longer exists", errors.EngineStoppedError.String(), 0))
				e.sink.OrderProcessed(m.LogOffset)
			case cmd.cancel != nil:
				m := cmd.cancel
				e.sink.PublishProcessor(outputv1.NewOrderRejected(m.OrderID, m.Symbol, m.UserID, "market no longer exists", errors.EngineStoppedError.String(), 0))
				e.sink.OrderProcessed(m.LogOffset)
			case cmd.cancelAll != nil:
				close(cmd.cancelAll.done)
			}
		default:
			return
		}
	}
}

// Submit enqueues a new order command.
func (e *MarketEngine) Submit(msg *enginev1.SubmitOrderMessage) error {
	select {
	case e.commands <- command{submit: msg}:
		return nil
	case <-e.done:
		return errors.NewErrorDetails("market engine stopped", errors.EngineStoppedError, msg.OrderID)
	}
}

// Cancel enqueues a cancel command.
func (e *MarketEngine) Cancel(msg *enginev1.CancelOrderMessage) error {
	select {
	case e.commands <- command{cancel: msg}:
		return nil
	case <-e.done:
		return errors.NewErrorDetails("market engine stopped", errors.EngineStoppedError, msg.OrderID)
	}
}

// CancelAllAndStop cancels every resting order of the market, publishes a
// final depth update and stops the engine goroutine. It blocks until the
// teardown is processed.
func (e *MarketEngine) CancelAllAndStop(reason string) {
	req := &cancelAllRequest{reason: reason, stop: true, done: make(chan struct{})}
	select {
	case e.commands <- command{cancelAll: req}:
		select {
		case <-req.done:
		case <-e.done:
		}
	case <-e.done:
	}
}

// Done is closed once the engine goroutine has exited.
func (e *MarketEngine) Done() <-chan struct{} {
	return e.done
}

func (e *MarketEngine) otherBook(tokenID string) *orderbookv1.OrderBook {
	if tokenID == e.tokens[0] {
		return e.books[e.tokens[1]]
	}
	return e.books[e.tokens[0]]
}

func (e *MarketEngine) otherToken(tokenID string) string {
	if tokenID == e.tokens[0] {
		return e.tokens[1]
	}
	return e.tokens[0]
}
