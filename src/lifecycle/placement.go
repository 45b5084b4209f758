package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

// execute places every unplaced leg of a Waiting trade, one at a time.
// Each leg outcome is committed before the next order so a restart never
// re-sends a filled leg. The caller holds the trade lock.
func (m *Manager) execute(ctx context.Context, id string) {
	t, ok := m.snapshot(id)
	if !ok || t.Status != model.StatusWaiting {
		return
	}

	log := m.logger.WithFields(map[string]interface{}{
		"trade_id": id,
		"symbol":   t.Symbol,
	})

	var lastErr error
	sent := 0
	for _, leg := range t.Legs {
		if leg.Ticket != 0 || leg.Error != "" {
			continue
		}
		if sent > 0 && m.cfg.InterOrderDelay > 0 {
			if !m.sleep(ctx, m.cfg.InterOrderDelay) {
				lastErr = ctx.Err()
				break
			}
		}
		sent++

		fill, err := m.placeLeg(ctx, t, leg)
		level := leg.Level
		ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
			l := t.LegByLevel(level)
			if l == nil {
				return nil, false
			}
			if err != nil {
				l.Error = err.Error()
			} else {
				l.Ticket = fill.Ticket
				l.FillPrice = fill.Price
				l.PlacedAt = &now
			}
			l.UpdatedAt = now
			return nil, true
		})
		m.apply(ctx, ch)

		if err != nil {
			lastErr = err
			log.WithFields(map[string]interface{}{
				"leg_level": level,
				"lot":       leg.Lot,
			}).WithError(err).Error("Leg placement failed")
			continue
		}
		log.WithFields(map[string]interface{}{
			"leg_level": level,
			"ticket":    fill.Ticket,
			"price":     fill.Price,
		}).Info("Leg placed")
	}

	ch, _ := m.mutate(id, func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool) {
		if t.Status != model.StatusWaiting {
			return nil, false
		}
		placed := t.PlacedLegs()
		if placed == 0 && ctx.Err() != nil {
			return nil, false
		}
		if placed == 0 {
			reason := fmt.Sprintf("all %d leg placements failed", len(t.Legs))
			if lastErr != nil {
				reason = fmt.Sprintf("%s: %v", reason, lastErr)
			} else if len(t.Legs) > 0 && t.Legs[0].Error != "" {
				reason = fmt.Sprintf("%s: %s", reason, t.Legs[0].Error)
			}
			return finish(t, model.StatusFailed, model.EventTradeFailed, reason, now), true
		}

		t.Status = model.StatusActive
		t.OpenedAt = &now
		t.EntryPrice = averageFill(t)
		ev := newEvent(t, model.EventTradeOpened, now)
		ev.Price = t.EntryPrice
		if placed < len(t.Legs) {
			ev.Reason = fmt.Sprintf("%d of %d legs placed", placed, len(t.Legs))
		}
		return []model.TradeEvent{ev}, true
	})
	m.apply(ctx, ch)

	if ch != nil {
		switch ch.snap.Status {
		case model.StatusFailed:
			log.WithField("reason", ch.snap.Reason).Error("Trade failed")
		case model.StatusActive:
			placed := ch.snap.PlacedLegs()
			if placed < len(ch.snap.Legs) {
				log.WithField("placed", placed).Warn("Trade opened with missing legs")
			} else {
				log.WithField("placed", placed).Info("Trade opened")
			}
		}
	}
}

// placeLeg sends one market order, retrying with linear backoff.
func (m *Manager) placeLeg(ctx context.Context, t *model.Trade, leg model.Leg) (venue.Fill, error) {
	req := venue.OrderRequest{
		Symbol:    m.brokerSymbol(t.Symbol),
		Direction: t.Direction,
		Lot:       leg.Lot,
		Comment:   orderComment(m.cfg.OrderComment, t.ID, leg.Level),
	}
	if leg.StopLoss != nil {
		req.StopLoss = *leg.StopLoss
	}
	if leg.TakeProfit != nil {
		req.TakeProfit = *leg.TakeProfit
	}

	attempts := m.cfg.PlaceRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var fill venue.Fill
		fill, err = m.venue.PlaceMarketOrder(ctx, req)
		if err == nil {
			return fill, nil
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		m.logger.WithFields(map[string]interface{}{
			"trade_id":  t.ID,
			"leg_level": leg.Level,
			"attempt":   attempt,
		}).WithError(err).Warn("Order placement failed, retrying")
		if !m.sleep(ctx, m.cfg.RetryBackoff*time.Duration(attempt)) {
			break
		}
	}
	return venue.Fill{}, fmt.Errorf("place leg %d: %w", leg.Level, err)
}

func orderComment(prefix, tradeID string, level int) string {
	short := tradeID
	if len(short) > 8 {
		short = short[:8]
	}
	if prefix == "" {
		return fmt.Sprintf("%s-%d", short, level)
	}
	return fmt.Sprintf("%s %s-%d", prefix, short, level)
}

// averageFill is the lot weighted fill price of the placed legs.
func averageFill(t *model.Trade) *float64 {
	total := decimal.Zero
	weighted := decimal.Zero
	for _, l := range t.Legs {
		if l.Ticket == 0 {
			continue
		}
		lot := decimal.NewFromFloat(l.Lot)
		total = total.Add(lot)
		weighted = weighted.Add(lot.Mul(decimal.NewFromFloat(l.FillPrice)))
	}
	if total.IsZero() {
		return nil
	}
	avg := weighted.Div(total).Round(venue.Digits(t.Symbol))
	return model.Float(avg.InexactFloat64())
}
