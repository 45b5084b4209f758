package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

// finish moves t to a retired status.
func finish(t *model.Trade, status model.TradeStatus, typ model.EventType, reason string, now time.Time) []model.TradeEvent {
	t.Status = status
	t.Reason = reason
	t.ClosedAt = &now
	ev := newEvent(t, typ, now)
	ev.Reason = reason
	if status == model.StatusSLHit {
		ev.Price = t.StopLoss
	}
	return []model.TradeEvent{ev}
}

// markTakeProfit records a target hit. Levels only move forward.
func markTakeProfit(t *model.Trade, level int, now time.Time) []model.TradeEvent {
	if level <= t.TPLevelHit {
		return nil
	}
	if level > 3 {
		level = 3
	}
	t.TPLevelHit = level
	t.MarkTPHit(level, now)
	if !t.Status.IsTerminal() {
		t.Status = model.TPHitStatus(level)
	}
	ev := newEvent(t, model.EventTakeProfitHit, now)
	ev.Level = level
	if tps := t.TakeProfits(); level <= len(tps) {
		ev.Price = model.Float(tps[level-1])
	}
	return []model.TradeEvent{ev}
}

func closeLeg(l *model.Leg, now time.Time) {
	l.Closed = true
	l.ClosedAt = &now
	l.UpdatedAt = now
}

// closeTickets closes each ticket in full. Tickets the venue no longer
// knows count as closed.
func (m *Manager) closeTickets(ctx context.Context, tradeID string, tickets []int64) ([]int64, error) {
	var closed []int64
	var errs []error
	for _, ticket := range tickets {
		err := m.venue.ClosePosition(ctx, ticket, nil)
		if err != nil && !errors.Is(err, venue.ErrPositionNotFound) {
			m.logger.WithFields(map[string]interface{}{
				"trade_id": tradeID,
				"ticket":   ticket,
			}).WithError(err).Error("Failed to close position")
			errs = append(errs, fmt.Errorf("close ticket %d: %w", ticket, err))
			continue
		}
		closed = append(closed, ticket)
	}
	return closed, errors.Join(errs...)
}

func openTickets(t *model.Trade, keep func(l *model.Leg) bool) []int64 {
	var out []int64
	for _, l := range t.OpenLegs() {
		if keep == nil || keep(l) {
			out = append(out, l.Ticket)
		}
	}
	return out
}

func markClosed(t *model.Trade, tickets []int64, now time.Time) int {
	n := 0
	for _, ticket := range tickets {
		for i := range t.Legs {
			if t.Legs[i].Ticket == ticket && !t.Legs[i].Closed {
				closeLeg(&t.Legs[i], now)
				n++
			}
		}
	}
	return n
}

// Close closes every open leg of the targeted trade.
func (m *Manager) Close(ctx context.Context, sig model.Signal) error {
	return m.retire(ctx, sig, model.StatusClosed, model.EventTradeClosed, "closed by channel")
}

// Cancel withdraws the targeted trade. A Waiting trade needs no venue call.
func (m *Manager) Cancel(ctx context.Context, sig model.Signal) error {
	return m.retire(ctx, sig, model.StatusCancelled, model.EventTradeCancelled, "cancelled by channel")
}

func (m *Manager) retire(ctx context.Context, sig model.Signal, status model.TradeStatus, typ model.EventType, reason string) error {
	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()

	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() {
		return ErrNoTarget
	}
	if t.Status == model.StatusWaiting {
		ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
			return finish(t, model.StatusCancelled, model.EventTradeCancelled, reason, now), true
		})
		m.apply(ctx, ch)
		return nil
	}

	closed, closeErr := m.closeTickets(ctx, id, openTickets(t, nil))
	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		changed := markClosed(t, closed, now) > 0
		if len(t.OpenLegs()) == 0 && !t.Status.IsTerminal() {
			return finish(t, status, typ, reason, now), true
		}
		return nil, changed
	})
	m.apply(ctx, ch)
	m.logger.WithFields(map[string]interface{}{
		"trade_id": id,
		"closed":   len(closed),
		"status":   status,
	}).Info("Trade closed by channel")
	return closeErr
}

// TakeProfitReported handles a channel "TPn hit" message: legs up to
// level n still open are closed and the level is recorded.
func (m *Manager) TakeProfitReported(ctx context.Context, sig model.Signal) error {
	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()

	level := sig.TPLevel
	if level < 1 {
		level = 1
	}

	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() {
		return ErrNoTarget
	}
	if t.Status == model.StatusWaiting {
		reason := fmt.Sprintf("take profit %d reached before entry", level)
		ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
			return finish(t, model.StatusCancelled, model.EventTradeCancelled, reason, now), true
		})
		m.apply(ctx, ch)
		return nil
	}

	closed, closeErr := m.closeTickets(ctx, id, openTickets(t, func(l *model.Leg) bool { return l.Level <= level }))
	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() {
			return nil, false
		}
		changed := markClosed(t, closed, now) > 0
		events := markTakeProfit(t, level, now)
		if len(t.OpenLegs()) == 0 {
			events = append(events, finish(t, model.StatusClosed, model.EventTradeClosed, "all targets closed", now)...)
		}
		return events, changed || len(events) > 0
	})
	m.apply(ctx, ch)

	if err := m.breakevenLocked(ctx, id, nil, false); err != nil {
		m.logger.WithField("trade_id", id).WithError(err).Warn("Breakeven incomplete, will retry")
	}
	return closeErr
}

// StopLossReported handles a channel "SL hit" message by closing what is
// left of the trade.
func (m *Manager) StopLossReported(ctx context.Context, sig model.Signal) error {
	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()

	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() {
		return ErrNoTarget
	}
	if t.Status == model.StatusWaiting {
		ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
			return finish(t, model.StatusCancelled, model.EventTradeCancelled, "stop loss reached before entry", now), true
		})
		m.apply(ctx, ch)
		return nil
	}

	closed, closeErr := m.closeTickets(ctx, id, openTickets(t, nil))
	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() {
			return nil, false
		}
		changed := markClosed(t, closed, now) > 0
		if len(t.OpenLegs()) == 0 {
			return finish(t, model.StatusSLHit, model.EventStopLossHit, "stop loss hit", now), true
		}
		return nil, changed
	})
	m.apply(ctx, ch)
	return closeErr
}

// UpdateStopLoss moves the stop of every open leg to the signal's price.
func (m *Manager) UpdateStopLoss(ctx context.Context, sig model.Signal) error {
	if sig.StopLoss == nil {
		return fmt.Errorf("update stop loss: missing price")
	}
	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()

	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() {
		return ErrNoTarget
	}
	newSL := *sig.StopLoss

	var moved []int
	var errs []error
	for _, l := range t.OpenLegs() {
		if err := m.venue.ModifyPosition(ctx, l.Ticket, model.Float(newSL), l.TakeProfit); err != nil {
			if errors.Is(err, venue.ErrPositionNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("modify ticket %d: %w", l.Ticket, err))
			continue
		}
		moved = append(moved, l.Level)
	}

	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() {
			return nil, false
		}
		for _, level := range moved {
			if l := t.LegByLevel(level); l != nil {
				l.StopLoss = model.Float(newSL)
				l.UpdatedAt = now
			}
		}
		if len(errs) > 0 && len(moved) == 0 && t.Status != model.StatusWaiting {
			return nil, false
		}
		t.StopLoss = model.Float(newSL)
		if t.Status == model.StatusWaiting {
			for i := range t.Legs {
				t.Legs[i].StopLoss = model.Float(newSL)
			}
		}
		ev := newEvent(t, model.EventStopLossUpdated, now)
		ev.Price = model.Float(newSL)
		return []model.TradeEvent{ev}, true
	})
	m.apply(ctx, ch)
	m.logger.WithFields(map[string]interface{}{
		"trade_id":  id,
		"stop_loss": newSL,
		"legs":      len(moved),
	}).Info("Stop loss updated")
	return errors.Join(errs...)
}

// UpdateTakeProfit changes leg targets. A signal naming one level changes
// that level; otherwise the list is applied from level 1.
func (m *Manager) UpdateTakeProfit(ctx context.Context, sig model.Signal) error {
	targets := map[int]float64{}
	if sig.TPLevel > 0 && len(sig.TakeProfits) > 0 {
		targets[sig.TPLevel] = sig.TakeProfits[0]
	} else {
		for i, tp := range sig.TakeProfits {
			targets[i+1] = tp
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("update take profit: missing price")
	}

	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()

	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() {
		return ErrNoTarget
	}

	var errs []error
	failed := map[int]bool{}
	for _, l := range t.OpenLegs() {
		tp, ok := targets[l.Level]
		if !ok {
			continue
		}
		if err := m.venue.ModifyPosition(ctx, l.Ticket, l.StopLoss, model.Float(tp)); err != nil && !errors.Is(err, venue.ErrPositionNotFound) {
			errs = append(errs, fmt.Errorf("modify ticket %d: %w", l.Ticket, err))
			failed[l.Level] = true
		}
	}

	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() {
			return nil, false
		}
		tps := t.TakeProfits()
		var events []model.TradeEvent
		for level := 1; level <= 3; level++ {
			tp, ok := targets[level]
			if !ok || failed[level] {
				continue
			}
			switch {
			case level <= len(tps):
				tps[level-1] = tp
			case level == len(tps)+1:
				tps = append(tps, tp)
			default:
				continue
			}
			if l := t.LegByLevel(level); l != nil {
				l.TakeProfit = model.Float(tp)
				l.UpdatedAt = now
			}
			ev := newEvent(t, model.EventTakeProfitUpdated, now)
			ev.Level = level
			ev.Price = model.Float(tp)
			events = append(events, ev)
		}
		if len(events) == 0 {
			return nil, false
		}
		t.SetTakeProfits(tps)
		return events, true
	})
	m.apply(ctx, ch)
	return errors.Join(errs...)
}
