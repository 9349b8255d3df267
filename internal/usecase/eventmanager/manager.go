package eventmanager

import (
	"context"
	"strconv"
	"sync"
	"time"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
	snapshotv1 "github.com/purplecity/PredictionMarket/internal/domain/snapshot/v1"
	"github.com/purplecity/PredictionMarket/internal/usecase/matching"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// Config tunes the manager and the engines it spawns.
type Config struct {
	Engine matching.Config
	// ExpiryCheckInterval is how often events are checked against their end
	// date.
	ExpiryCheckInterval time.Duration
	// ExpiryDelay keeps an event alive past its end date, so late fills and
	// cancels still route.
	ExpiryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ExpiryCheckInterval <= 0 {
		c.ExpiryCheckInterval = 5 * time.Minute
	}
	if c.ExpiryDelay < 0 {
		c.ExpiryDelay = 0
	}
	return c
}

type eventEntry struct {
	eventID int64
	endDate *time.Time
	markets map[int16]*matching.MarketEngine
}

// Manager owns every registered event and routes order commands to the
// market engine of their symbol. Each engine runs as its own goroutine; the
// manager itself only keeps the registry.
type Manager struct {
	mu      sync.RWMutex
	events  map[int64]*eventEntry
	stopped bool

	ctx    context.Context
	wg     sync.WaitGroup
	cfg    Config
	sink   matching.Sink
	logger *logger.Logger
}

// NewManager builds an empty registry. Call Start before feeding commands.
func NewManager(cfg Config, sink matching.Sink, log *logger.Logger) *Manager {
	return &Manager{
		events: make(map[int64]*eventEntry),
		cfg:    cfg.withDefaults(),
		sink:   sink,
		logger: log,
	}
}

// Start binds the manager to a context, launches every engine registered so
// far and the expiry sweeper. Engines registered later launch immediately.
// Cancelling the context stops the engines without cancelling their resting
// orders; restore runs before Start so snapshot replay never races a live
// engine.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	for _, entry := range m.events {
		for _, engine := range entry.markets {
			m.launchEngine(ctx, engine)
		}
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runExpirySweeper(ctx)
}

func (m *Manager) launchEngine(ctx context.Context, engine *matching.MarketEngine) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		engine.Run(ctx)
	}()
}

// Wait blocks until every engine goroutine and the sweeper have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit routes a new order to its market engine.
func (m *Manager) Submit(msg *enginev1.SubmitOrderMessage) error {
	engine, err := m.route(msg.Symbol)
	if err != nil {
		return err
	}
	return engine.Submit(msg)
}

// Cancel routes a cancel to its market engine.
func (m *Manager) Cancel(msg *enginev1.CancelOrderMessage) error {
	engine, err := m.route(msg.Symbol)
	if err != nil {
		return err
	}
	return engine.Cancel(msg)
}

func (m *Manager) route(symbol enginev1.PredictionSymbol) (*matching.MarketEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped {
		return nil, errors.NewErrorDetails("engine intake is stopped", errors.EngineStoppedError, "symbol")
	}
	entry, ok := m.events[symbol.EventID]
	if !ok {
		return nil, errors.NewErrorDetails("unknown event", errors.OrderUnknownSymbolError, "symbol")
	}
	if entry.endDate != nil && time.Now().After(entry.endDate.Add(m.cfg.ExpiryDelay)) {
		return nil, errors.NewErrorDetails("event expired", errors.EventExpiredError, "symbol")
	}
	engine, ok := entry.markets[symbol.MarketID]
	if !ok {
		return nil, errors.NewErrorDetails("unknown market", errors.OrderUnknownSymbolError, "symbol")
	}
	return engine, nil
}

// HandleEvent applies one decoded event topic message.
func (m *Manager) HandleEvent(msg any) error {
	switch event := msg.(type) {
	case *enginev1.EventCreateMessage:
		return m.AddEvent(event)
	case *enginev1.EventCloseMessage:
		return m.RemoveEvent(event.EventID)
	case *enginev1.AddOneMarketMessage:
		return m.AddMarket(event.EventID, event.Market)
	case *enginev1.RemoveOneMarketMessage:
		return m.RemoveMarket(event.EventID, event.MarketID)
	case *enginev1.StopAllEventsMessage:
		if event.Stop {
			m.StopAll()
		}
		return nil
	case *enginev1.ResumeAllEventsMessage:
		if event.Resume {
			m.ResumeAll()
		}
		return nil
	default:
		return errors.NewErrorDetails("unsupported event message", errors.GeneralBadRequestError, "types")
	}
}

// AddEvent registers an event and spawns one engine per market. Re-adding a
// known event only creates the markets that are missing.
func (m *Manager) AddEvent(msg *enginev1.EventCreateMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.events[msg.EventID]
	if !ok {
		entry = &eventEntry{
			eventID: msg.EventID,
			endDate: msg.EndDate,
			markets: make(map[int16]*matching.MarketEngine),
		}
		m.events[msg.EventID] = entry
	}

	added := 0
	for _, market := range msg.Markets {
		if _, exists := entry.markets[market.MarketID]; exists {
			continue
		}
		m.startEngineLocked(entry, market)
		added++
	}
	if added > 0 {
		m.sink.PublishStore(outputv1.NewEventAddedEvent(msg.EventID, msg.Markets, msg.EndDate))
	}

	m.logger.Info("event registered",
		logger.Field{Key: "event_id", Value: msg.EventID},
		logger.Field{Key: "markets", Value: len(entry.markets)},
	)
	return nil
}

// AddMarket adds one market to a registered event.
func (m *Manager) AddMarket(eventID int64, market enginev1.EventMarket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.events[eventID]
	if !ok {
		return errors.NewErrorDetails("unknown event", errors.OrderUnknownSymbolError, "event_id")
	}
	if _, exists := entry.markets[market.MarketID]; exists {
		return nil
	}
	m.startEngineLocked(entry, market)
	m.sink.PublishStore(outputv1.NewMarketAddedEvent(eventID, market))
	return nil
}

// startEngineLocked creates one market engine and launches it when the
// manager is already started. Callers hold the write lock.
func (m *Manager) startEngineLocked(entry *eventEntry, market enginev1.EventMarket) {
	engine := matching.NewMarketEngine(entry.eventID, market.MarketID, market, m.cfg.Engine, m.sink, m.logger)
	entry.markets[market.MarketID] = engine

	if m.ctx != nil {
		m.launchEngine(m.ctx, engine)
	}
}

// RemoveEvent tears down every market of an event, cancelling all resting
// orders, and records the removal on the store stream.
func (m *Manager) RemoveEvent(eventID int64) error {
	m.mu.Lock()
	entry, ok := m.events[eventID]
	if ok {
		delete(m.events, eventID)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewErrorDetails("unknown event", errors.OrderUnknownSymbolError, "event_id")
	}

	for _, engine := range entry.markets {
		engine.CancelAllAndStop(outputv1.CancelReasonEventClosed)
	}
	m.sink.PublishStore(outputv1.NewEventRemovedEvent(eventID))

	m.logger.Info("event removed", logger.Field{Key: "event_id", Value: eventID})
	return nil
}

// RemoveMarket tears down one market of an event.
func (m *Manager) RemoveMarket(eventID int64, marketID int16) error {
	m.mu.Lock()
	entry, ok := m.events[eventID]
	var engine *matching.MarketEngine
	if ok {
		engine = entry.markets[marketID]
		delete(entry.markets, marketID)
	}
	m.mu.Unlock()

	if !ok || engine == nil {
		return errors.NewErrorDetails("unknown market", errors.OrderUnknownSymbolError, "market_id")
	}

	engine.CancelAllAndStop(outputv1.CancelReasonMarketClosed)
	m.sink.PublishStore(outputv1.NewMarketRemovedEvent(eventID, marketID))

	m.logger.Info("market removed",
		logger.Field{Key: "event_id", Value: eventID},
		logger.Field{Key: "market_id", Value: marketID},
	)
	return nil
}

// StopAll halts order intake for every market. Resting orders stay on the
// books.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.logger.Warn("order intake stopped")
}

// ResumeAll re-enables order intake.
func (m *Manager) ResumeAll() {
	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()
	m.logger.Info("order intake resumed")
}

// Stopped reports whether intake is halted.
func (m *Manager) Stopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

// EventCount returns the number of registered events.
func (m *Manager) EventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// RestoreFromSnapshot rebuilds the registry from a snapshot. Events already
// past their grace period are dropped along with their orders; everything
// else is re-seeded with its persisted update counter and queue order.
func (m *Manager) RestoreFromSnapshot(snap *snapshotv1.AllOrdersSnapshot) error {
	if snap == nil {
		return nil
	}

	now := time.Now()
	restoredEvents := 0
	restoredOrders := 0

	// Group active orders by market.
	byMarket := make(map[string][]*enginev1.Order)
	for i := range snap.Orders {
		order := &snap.Orders[i]
		if !order.IsActive() {
			continue
		}
		byMarket[order.Symbol.MarketKey()] = append(byMarket[order.Symbol.MarketKey()], order)
	}

	for _, event := range snap.Events {
		if event.EndDate != nil && now.After(event.EndDate.Add(m.cfg.ExpiryDelay)) {
			m.logger.Warn("dropping expired event from snapshot",
				logger.Field{Key: "event_id", Value: event.EventID},
			)
			continue
		}

		createMsg := &enginev1.EventCreateMessage{
			Types:   enginev1.TypeAddOneEvent,
			EventID: event.EventID,
			EndDate: event.EndDate,
			Markets: make(map[string]enginev1.EventMarket, len(event.Markets)),
		}
		for key, market := range event.Markets {
			createMsg.Markets[key] = enginev1.EventMarket{
				MarketID: market.MarketID,
				Outcomes: market.Outcomes,
				TokenIDs: market.TokenIDs,
			}
		}
		if err := m.AddEvent(createMsg); err != nil {
			return err
		}
		restoredEvents++

		m.mu.RLock()
		entry := m.events[event.EventID]
		m.mu.RUnlock()

		for key, market := range event.Markets {
			marketID, err := strconv.ParseInt(key, 10, 16)
			if err != nil {
				return errors.NewErrorDetails("invalid market key in snapshot", errors.SnapshotUnmarshalError, key)
			}
			engine := entry.markets[int16(marketID)]
			if engine == nil {
				continue
			}
			orders := byMarket[enginev1.MarketKey(event.EventID, int16(marketID))]
			if err := engine.Restore(orders, market.UpdateID); err != nil {
				return err
			}
			restoredOrders += len(orders)
		}
	}

	m.logger.Info("snapshot restored",
		logger.Field{Key: "events", Value: restoredEvents},
		logger.Field{Key: "orders", Value: restoredOrders},
	)
	return nil
}

func (m *Manager) runExpirySweeper(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ExpiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Manager) sweepExpired() {
	now := time.Now()

	m.mu.RLock()
	var expired []int64
	for id, entry := range m.events {
		if entry.endDate != nil && now.After(entry.endDate.Add(m.cfg.ExpiryDelay)) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if err := m.RemoveEvent(id); err != nil {
			m.logger.Error(err, logger.Field{Key: "event_id", Value: id})
		}
	}
}
