package lifecycle

import (
	"context"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

// Reconcile diffs every live trade against one venue position snapshot
// taken at asOf. A tracked ticket missing from the snapshot has closed at
// the venue, unless it was placed after the snapshot was taken.
// When the whole remaining group is gone at once and the trade never
// reached a target, the stop was hit; otherwise each vanished leg is a
// take profit and the highest level is reported.
func (m *Manager) Reconcile(ctx context.Context, positions []venue.Position, asOf time.Time) {
	live := venue.TicketSet(positions)
	ids := m.tradeIDs(func(t *model.Trade) bool {
		return !t.Status.IsTerminal() && t.Status != model.StatusWaiting
	})
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		m.reconcileTrade(ctx, id, live, asOf)
	}
}

func (m *Manager) reconcileTrade(ctx context.Context, id string, live map[int64]venue.Position, asOf time.Time) {
	unlock := m.lockTrade(id)
	defer unlock()

	var vanished int
	ch, err := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status.IsTerminal() || t.Status == model.StatusWaiting {
			return nil, false
		}
		return settleVanished(t, live, asOf, now, &vanished)
	})
	if err != nil {
		return
	}
	m.apply(ctx, ch)

	if ch != nil {
		m.logger.WithFields(map[string]interface{}{
			"trade_id":  id,
			"vanished":  vanished,
			"status":    ch.snap.Status,
			"tp_level":  ch.snap.TPLevelHit,
			"open_legs": len(ch.snap.OpenLegs()),
		}).Info("Trade reconciled")
	}

	if err := m.breakevenLocked(ctx, id, live, false); err != nil {
		m.logger.WithField("trade_id", id).WithError(err).Warn("Breakeven incomplete, will retry")
	}
}

func settleVanished(t *model.Trade, live map[int64]venue.Position, asOf, now time.Time, count *int) ([]model.TradeEvent, bool) {
	hadHistory := t.TPLevelHit > 0 || t.HasClosedLeg()

	top := 0
	for _, l := range t.OpenLegs() {
		if _, ok := live[l.Ticket]; ok {
			continue
		}
		if l.PlacedAt != nil && l.PlacedAt.After(asOf) {
			continue
		}
		closeLeg(l, now)
		*count++
		if l.Level > top {
			top = l.Level
		}
	}
	if *count == 0 {
		return nil, false
	}

	remaining := len(t.OpenLegs())
	if remaining == 0 && !hadHistory {
		return finish(t, model.StatusSLHit, model.EventStopLossHit, "stop loss hit", now), true
	}

	events := markTakeProfit(t, top, now)
	if remaining == 0 {
		events = append(events, finish(t, model.StatusClosed, model.EventTradeClosed, "all legs closed", now)...)
	}
	return events, true
}

// RefreshPnL updates unrealized P&L in the read model.
func (m *Manager) RefreshPnL(positions []venue.Position) {
	m.view.RefreshPnL(positions)
}
