package engine

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	snapshotv1 "github.com/purplecity/PredictionMarket/internal/domain/snapshot/v1"
	"github.com/purplecity/PredictionMarket/internal/usecase/eventmanager"
	orderreader "github.com/purplecity/PredictionMarket/internal/usecase/order-reader"
	"github.com/purplecity/PredictionMarket/internal/usecase/publisher"
	"github.com/purplecity/PredictionMarket/internal/usecase/snapshot"
	"github.com/purplecity/PredictionMarket/pkg/config"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// Consumer reads one input topic partition.
type Consumer interface {
	SetOffset(offset int64) error
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Engine wires the input readers, the event manager and the snapshot loop
// together. Matching itself happens inside the per-market engines owned by
// the manager; this layer only moves messages and offsets.
type Engine struct {
	manager   *eventmanager.Manager
	publisher *publisher.Publisher
	keeper    *snapshot.Keeper
	store     snapshotv1.Store

	orderConsumer Consumer
	eventConsumer Consumer
	dedup         *orderreader.SlidingWindow

	logger *logger.Logger
	config *config.Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates the engine from its dependencies.
func NewEngine(
	manager *eventmanager.Manager,
	pub *publisher.Publisher,
	keeper *snapshot.Keeper,
	store snapshotv1.Store,
	orderConsumer Consumer,
	eventConsumer Consumer,
	log *logger.Logger,
	cfg *config.Config,
) *Engine {
	return &Engine{
		manager:       manager,
		publisher:     pub,
		keeper:        keeper,
		store:         store,
		orderConsumer: orderConsumer,
		eventConsumer: eventConsumer,
		dedup:         orderreader.NewSlidingWindow(cfg.DedupWindowSize),
		logger:        log,
		config:        cfg,
	}
}

// Start loads the last snapshot, restores the registry and launches the
// processing goroutines.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	snap, err := e.store.Load(e.ctx)
	if err != nil {
		return err
	}
	e.keeper.Prime(snap)
	if err := e.manager.RestoreFromSnapshot(snap); err != nil {
		return err
	}

	// The publisher outlives the run context so queued output still reaches
	// Redis while the rest of the engine drains during shutdown.
	e.publisher.Start(context.WithoutCancel(e.ctx))
	e.manager.Start(e.ctx)

	e.wg.Add(3)
	go e.runOrderProcessor()
	go e.runEventProcessor()
	go e.runSnapshotWriter()

	orderCursor, eventCursor := e.keeper.Cursors()
	e.logger.Info("engine started",
		logger.Field{Key: "order_cursor", Value: orderCursor},
		logger.Field{Key: "event_cursor", Value: eventCursor},
	)
	return nil
}

// Stop shuts the engine down: input stops first, then the market engines,
// then the publisher drains, and the final state is snapshotted. Resting
// orders are not cancelled; they come back on the next start.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.manager.Wait()
		e.publisher.Stop()
		e.saveSnapshot(context.Background())
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("engine stop timeout exceeded")
		return ctx.Err()
	}
}

// runOrderProcessor reads the order topic from just past the snapshot
// cursor and routes commands to their market engines. Replayed commands the
// snapshot already contains are dropped by the dedup window. Each offset is
// registered with the keeper before processing and completed once its engine
// is done with it, so a snapshot never pins an offset whose command is still
// in flight.
func (e *Engine) runOrderProcessor() {
	defer e.wg.Done()

	orderCursor, _ := e.keeper.Cursors()
	if err := e.orderConsumer.SetOffset(orderCursor + 1); err != nil {
		e.logger.Error(err, logger.Field{Key: "action", Value: "set_order_offset"})
		return
	}

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("order processor shutting down")
			e.orderConsumer.Close()
			return
		default:
			msg, err := e.orderConsumer.ReadMessage(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					continue
				}
				time.Sleep(100 * time.Millisecond)
				continue
			}

			e.keeper.BeginOrder(msg.Offset)
			if !e.processOrderMessage(msg) {
				e.keeper.CompleteOrder(msg.Offset)
			}
		}
	}
}

// processOrderMessage routes one decoded command and reports whether it was
// handed to a market engine. When it was, the engine completes the offset
// through the publisher once the command is done.
func (e *Engine) processOrderMessage(msg kafka.Message) bool {
	decoded, err := enginev1.DecodeOrderInput(msg.Value)
	if err != nil {
		e.logger.Error(err,
			logger.Field{Key: "offset", Value: msg.Offset},
			logger.Field{Key: "action", Value: "decode_order_input"},
		)
		return false
	}

	switch m := decoded.(type) {
	case *enginev1.SubmitOrderMessage:
		if e.dedup.Observe("submit|" + m.OrderID) {
			e.logger.Warn("dropping replayed submit", logger.Field{Key: "order_id", Value: m.OrderID})
			return false
		}
		m.LogOffset = msg.Offset
		if err := e.manager.Submit(m); err != nil {
			e.publisher.PublishProcessor(outputv1.NewOrderRejected(m.OrderID, m.Symbol, m.UserID, err.Error(), rejectionCode(err), 0))
			return false
		}
	case *enginev1.CancelOrderMessage:
		if e.dedup.Observe("cancel|" + m.OrderID) {
			e.logger.Warn("dropping replayed cancel", logger.Field{Key: "order_id", Value: m.OrderID})
			return false
		}
		m.LogOffset = msg.Offset
		if err := e.manager.Cancel(m); err != nil {
			e.publisher.PublishProcessor(outputv1.NewOrderRejected(m.OrderID, m.Symbol, m.UserID, err.Error(), rejectionCode(err), 0))
			return false
		}
	}
	return true
}

func rejectionCode(err error) string {
	if details, ok := err.(*errors.ErrorDetails); ok {
		return details.Code.String()
	}
	return errors.GeneralInternalServerError.String()
}

// runEventProcessor reads the event topic. Event messages are idempotent,
// so replay after the cursor needs no dedup window.
func (e *Engine) runEventProcessor() {
	defer e.wg.Done()

	_, eventCursor := e.keeper.Cursors()
	if err := e.eventConsumer.SetOffset(eventCursor + 1); err != nil {
		e.logger.Error(err, logger.Field{Key: "action", Value: "set_event_offset"})
		return
	}

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("event processor shutting down")
			e.eventConsumer.Close()
			return
		default:
			msg, err := e.eventConsumer.ReadMessage(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					continue
				}
				time.Sleep(100 * time.Millisecond)
				continue
			}

			decoded, err := enginev1.DecodeEventInput(msg.Value)
			if err != nil {
				e.logger.Error(err,
					logger.Field{Key: "offset", Value: msg.Offset},
					logger.Field{Key: "action", Value: "decode_event_input"},
				)
			} else if err := e.manager.HandleEvent(decoded); err != nil {
				e.logger.Error(err,
					logger.Field{Key: "offset", Value: msg.Offset},
					logger.Field{Key: "action", Value: "handle_event"},
				)
			}

			e.keeper.SetEventCursor(msg.Offset)
		}
	}
}

// runSnapshotWriter persists the keeper's image on a fixed cadence. The
// final snapshot on shutdown is written by Stop after everything drained.
func (e *Engine) runSnapshotWriter() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SnapshotInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("snapshot writer shutting down")
			return
		case <-ticker.C:
			e.saveSnapshot(e.ctx)
		}
	}
}

func (e *Engine) saveSnapshot(ctx context.Context) {
	snap := e.keeper.Snapshot()
	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Error(err, logger.Field{Key: "action", Value: "save_snapshot"})
	}
}
