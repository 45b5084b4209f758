package lifecycle

import (
	"context"
	"sync"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/utils"

	logger "github.com/sirupsen/logrus"
)

// Handler receives lifecycle events in publication order.
type Handler func(ctx context.Context, ev model.TradeEvent)

// Bus fans events out to subscribers synchronously. Handlers run
// outside the manager's mutation lock.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, events ...model.TradeEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			b.dispatch(ctx, h, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev model.TradeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"component": "EventBus",
				"event":     ev.Type,
				"trade_id":  ev.TradeID,
				"panic":     r,
			}).Error("Event handler panicked")
		}
	}()
	h(ctx, ev)
}

func newEvent(t *model.Trade, typ model.EventType, at time.Time) model.TradeEvent {
	return model.TradeEvent{
		ID:        utils.NewEventID(at),
		TradeID:   t.ID,
		Type:      typ,
		Symbol:    t.Symbol,
		CreatedAt: at,
	}
}

// LogHandler writes every event to the structured log.
func LogHandler(_ context.Context, ev model.TradeEvent) {
	fields := map[string]interface{}{
		"component": "TradeEvents",
		"event_id":  ev.ID,
		"event":     ev.Type,
		"trade_id":  ev.TradeID,
		"symbol":    ev.Symbol,
	}
	if ev.Level > 0 {
		fields["tp_level"] = ev.Level
	}
	if ev.Price != nil {
		fields["price"] = *ev.Price
	}
	if ev.Reason != "" {
		fields["reason"] = ev.Reason
	}
	logger.WithFields(fields).Info("Trade event")
}

type eventWriter interface {
	Create(ctx context.Context, ev *model.TradeEvent) error
}

// AuditHandler persists events through repo; failures are logged only.
func AuditHandler(repo eventWriter) Handler {
	return func(ctx context.Context, ev model.TradeEvent) {
		e := ev
		if err := repo.Create(ctx, &e); err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "TradeEvents",
				"event_id":  ev.ID,
				"event":     ev.Type,
			}).WithError(err).Error("Failed to persist trade event")
		}
	}
}
