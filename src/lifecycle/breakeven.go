package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
	"signalbridge/src/tp_sl"
	"signalbridge/src/venue"
)

// Breakeven applies breakeven on the targeted trade because the channel
// asked for it.
func (m *Manager) Breakeven(ctx context.Context, sig model.Signal) error {
	id, err := m.resolve(sig)
	if err != nil {
		return err
	}
	unlock := m.lockTrade(id)
	defer unlock()
	return m.breakevenLocked(ctx, id, nil, true)
}

type breakevenMove struct {
	level      int
	ticket     int64
	stopLoss   float64
	takeProfit *float64
}

// breakevenLocked moves every open leg's stop to its own fill plus the
// offset. It runs once per trade: the flag is set only when no leg failed,
// so a partial attempt is retried on the next pass. Reconciliation triggers
// it after the first take profit; manual requests force it. live, when
// known, provides the venue's current stops. The caller holds the trade lock.
func (m *Manager) breakevenLocked(ctx context.Context, id string, live map[int64]venue.Position, manual bool) error {
	t, ok := m.snapshot(id)
	if !ok || t.Status.IsTerminal() || t.Status == model.StatusWaiting || t.BreakevenApplied {
		return nil
	}
	if !manual && t.TPLevelHit == 0 {
		return nil
	}
	open := t.OpenLegs()
	if len(open) == 0 {
		return nil
	}

	side := tp_sl.SideFromDirection(t.Direction)
	offset := decimal.NewFromFloat(m.cfg.BreakevenOffset)
	digits := venue.Digits(t.Symbol)

	var moves []breakevenMove
	for _, l := range open {
		current := 0.0
		fill := l.FillPrice
		if p, ok := live[l.Ticket]; ok {
			current = p.StopLoss
			if fill == 0 {
				fill = p.OpenPrice
			}
		} else if l.StopLoss != nil {
			current = *l.StopLoss
		}
		newSL, moved := tp_sl.ComputeBreakevenStopLoss(
			side,
			decimal.NewFromFloat(current),
			decimal.NewFromFloat(fill),
			offset,
			digits,
		)
		if !moved {
			continue
		}
		moves = append(moves, breakevenMove{
			level:      l.Level,
			ticket:     l.Ticket,
			stopLoss:   newSL.InexactFloat64(),
			takeProfit: l.TakeProfit,
		})
	}

	var errs []error
	applied := map[int]float64{}
	for _, mv := range moves {
		err := m.venue.ModifyPosition(ctx, mv.ticket, model.Float(mv.stopLoss), mv.takeProfit)
		if err != nil && !errors.Is(err, venue.ErrPositionNotFound) {
			errs = append(errs, fmt.Errorf("modify ticket %d: %w", mv.ticket, err))
			continue
		}
		if err == nil {
			applied[mv.level] = mv.stopLoss
		}
	}

	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() || t.BreakevenApplied {
			return nil, false
		}
		for level, sl := range applied {
			if l := t.LegByLevel(level); l != nil {
				l.StopLoss = model.Float(sl)
				l.UpdatedAt = now
			}
		}
		if len(errs) > 0 {
			return nil, len(applied) > 0
		}
		t.BreakevenApplied = true
		if manual && t.Status == model.StatusActive {
			t.Status = model.StatusBreakeven
		}
		ev := newEvent(t, model.EventBreakevenApplied, now)
		ev.Level = t.TPLevelHit
		ev.Reason = fmt.Sprintf("%d of %d open legs moved", len(applied), len(open))
		return []model.TradeEvent{ev}, true
	})
	m.apply(ctx, ch)

	log := m.logger.WithFields(map[string]interface{}{
		"trade_id": id,
		"moved":    len(applied),
		"open":     len(open),
		"manual":   manual,
	})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.WithError(err).Warn("Breakeven partially applied")
		return err
	}
	log.Info("Breakeven applied")
	return nil
}
