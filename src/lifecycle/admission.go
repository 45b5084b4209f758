package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
	"signalbridge/src/risk"
	"signalbridge/src/tp_sl"
	"signalbridge/src/venue"
)

// Open admits a NewTrade signal. A trade rejected by the risk gate is
// still recorded, as Rejected with the reason, and no error is returned.
func (m *Manager) Open(ctx context.Context, sig model.Signal) (*model.Trade, error) {
	key := sig.SourceKey()

	m.mu.Lock()
	if id, ok := m.bySource[key]; ok {
		var existing *model.Trade
		if t, found := m.trades[id]; found {
			existing = t.Clone()
		}
		m.mu.Unlock()
		m.logger.WithFields(map[string]interface{}{
			"channel_id": sig.ChannelID,
			"message_id": sig.MessageID,
			"trade_id":   id,
		}).Info("Ignoring duplicate signal")
		return existing, ErrDuplicate
	}
	openTrades := m.openCountLocked() + m.reserved
	m.reserved++
	m.bySource[key] = ""
	m.mu.Unlock()

	decision := risk.Decision{Allowed: true}
	if m.gate != nil {
		decision = m.gate.Admit(ctx, sig, openTrades)
	}

	t := m.newTrade(sig)
	var events []model.TradeEvent
	if decision.Allowed {
		t.Status = model.StatusWaiting
		t.Legs = m.planLegs(t)
	} else {
		t.Status = model.StatusRejected
		t.Reason = decision.Reason
		t.ClosedAt = &t.CreatedAt
		ev := newEvent(t, model.EventTradeRejected, t.CreatedAt)
		ev.Reason = decision.Reason
		events = append(events, ev)
	}

	m.mu.Lock()
	m.reserved--
	m.trades[t.ID] = t
	m.order = append(m.order, t.ID)
	m.bySource[key] = t.ID
	ch := m.commitLocked(t, t.CreatedAt)
	ch.events = events
	m.mu.Unlock()

	unlock := m.lockTrade(t.ID)
	defer unlock()
	m.apply(ctx, ch)

	log := m.logger.WithFields(map[string]interface{}{
		"trade_id":  t.ID,
		"symbol":    t.Symbol,
		"direction": t.Direction,
		"lot":       t.RequestedLot,
	})
	if !decision.Allowed {
		log.WithField("reason", decision.Reason).Warn("Trade rejected")
		return ch.snap.Clone(), nil
	}
	log.Info("Trade admitted")

	if m.cfg.ExecuteImmediately || sig.IsMarket() {
		m.execute(ctx, t.ID)
	} else if ok, err := m.entryReady(ctx, ch.snap); err != nil {
		log.WithError(err).Warn("Entry check failed, trade stays waiting")
	} else if ok {
		m.execute(ctx, t.ID)
	}

	snap, _ := m.snapshot(t.ID)
	return snap, nil
}

func (m *Manager) newTrade(sig model.Signal) *model.Trade {
	now := m.now()
	lot := m.cfg.DefaultLot
	if sig.LotSize != nil && *sig.LotSize > 0 {
		lot = *sig.LotSize
	}
	t := &model.Trade{
		ID:           m.newID(),
		SignalID:     sig.ID,
		ChannelID:    sig.ChannelID,
		MessageID:    sig.MessageID,
		Symbol:       sig.Symbol,
		Direction:    sig.Direction,
		EntryMin:     sig.EntryMin,
		EntryMax:     sig.EntryMax,
		StopLoss:     sig.StopLoss,
		RequestedLot: lot,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.SetTakeProfits(sig.TakeProfits)
	return t.Clone()
}

// planLegs builds one leg per target sized requestedLot x split[level].
// A trade without targets gets a single level 1 leg with the whole lot.
// Legs whose share rounds below the minimum lot carry an error and are
// never sent.
func (m *Manager) planLegs(t *model.Trade) []model.Leg {
	tps := t.TakeProfits()
	levels := len(tps)

	var percents []int
	if levels == 0 {
		levels = 1
		percents = []int{100}
	} else {
		percents = make([]int, levels)
		for i := range percents {
			if i < len(m.cfg.LegSplit) {
				percents[i] = m.cfg.LegSplit[i]
			}
		}
	}
	lots := tp_sl.SplitLots(
		decimal.NewFromFloat(t.RequestedLot),
		percents,
		decimal.NewFromFloat(m.cfg.LotStep),
	)
	minLot := decimal.NewFromFloat(m.cfg.MinLot)

	legs := make([]model.Leg, levels)
	for i := range legs {
		legs[i] = model.Leg{
			TradeID:   t.ID,
			Level:     i + 1,
			Lot:       lots[i].InexactFloat64(),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.CreatedAt,
		}
		if t.StopLoss != nil {
			legs[i].StopLoss = model.Float(*t.StopLoss)
		}
		if i < len(tps) {
			legs[i].TakeProfit = model.Float(tps[i])
		}
		if !lots[i].IsPositive() || lots[i].LessThan(minLot) {
			legs[i].Error = fmt.Sprintf("lot %s below minimum %s", lots[i].StringFixed(2), minLot.String())
			m.logger.WithFields(map[string]interface{}{
				"trade_id":  t.ID,
				"leg_level": i + 1,
				"percent":   percents[i],
			}).Warn(legs[i].Error)
		}
	}
	return legs
}

// entryReady reports whether the current quote sits inside the entry band
// and has not already crossed the stop.
func (m *Manager) entryReady(ctx context.Context, t *model.Trade) (bool, error) {
	if t.EntryMin == nil || t.EntryMax == nil {
		return true, nil
	}
	q, err := m.venue.GetQuote(ctx, m.brokerSymbol(t.Symbol))
	if err != nil {
		return false, err
	}
	return priceInBand(t, q), nil
}

func priceInBand(t *model.Trade, q venue.Quote) bool {
	if t.Direction == model.DirectionShort {
		if q.Bid < *t.EntryMin {
			return false
		}
		return t.StopLoss == nil || q.Bid < *t.StopLoss
	}
	if q.Ask > *t.EntryMax {
		return false
	}
	return t.StopLoss == nil || q.Ask > *t.StopLoss
}

// CheckPending executes Waiting trades whose price reached the entry band
// and cancels the ones that waited longer than the expiry.
func (m *Manager) CheckPending(ctx context.Context) {
	ids := m.tradeIDs(func(t *model.Trade) bool { return t.Status == model.StatusWaiting })
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		m.checkPending(ctx, id)
	}
}

func (m *Manager) checkPending(ctx context.Context, id string) {
	unlock := m.lockTrade(id)
	defer unlock()

	t, ok := m.snapshot(id)
	if !ok || t.Status != model.StatusWaiting {
		return
	}

	if m.cfg.PendingExpiry > 0 && m.now().Sub(t.CreatedAt) >= m.cfg.PendingExpiry {
		reason := fmt.Sprintf("entry not reached within %s", m.cfg.PendingExpiry)
		ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
			if t.Status != model.StatusWaiting {
				return nil, false
			}
			return finish(t, model.StatusCancelled, model.EventTradeCancelled, reason, now), true
		})
		m.apply(ctx, ch)
		m.logger.WithField("trade_id", id).Info("Pending trade expired")
		return
	}

	ready, err := m.entryReady(ctx, t)
	if err != nil {
		m.logger.WithField("trade_id", id).WithError(err).Warn("Entry check failed")
		return
	}
	if ready {
		m.execute(ctx, id)
	}
}

func (m *Manager) brokerSymbol(symbol string) string {
	return venue.ToBrokerSymbol(symbol, m.cfg.SymbolSuffix)
}
