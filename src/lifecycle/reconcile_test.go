package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalbridge/src/model"
)

func legTicket(t *testing.T, trade model.Trade, level int) int64 {
	t.Helper()
	l := trade.LegByLevel(level)
	require.NotNil(t, l)
	require.NotZero(t, l.Ticket)
	return l.Ticket
}

func countEvents(h *harness, typ model.EventType) int {
	n := 0
	for _, got := range h.events.types() {
		if got == typ {
			n++
		}
	}
	return n
}

func TestFirstTargetMovesRemainingLegsToBreakeven(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	h.venue.vanish(legTicket(t, trade, 1))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusTP1Hit, got.Status)
	assert.Equal(t, 1, got.TPLevelHit)
	assert.True(t, got.BreakevenApplied)
	assert.NotNil(t, got.TP1HitAt)
	assert.True(t, got.LegByLevel(1).Closed)

	require.NotNil(t, got.LegByLevel(2).StopLoss)
	require.NotNil(t, got.LegByLevel(3).StopLoss)
	assert.Equal(t, 1.1804, *got.LegByLevel(2).StopLoss)
	assert.Equal(t, 1.1805, *got.LegByLevel(3).StopLoss)

	require.Len(t, h.venue.modifies, 2)
	for _, call := range h.venue.modifies {
		require.NotNil(t, call.takeProfit)
		assert.NotEqual(t, 1.1830, *call.takeProfit)
	}

	assert.Equal(t, []model.EventType{
		model.EventTradeOpened,
		model.EventTakeProfitHit,
		model.EventBreakevenApplied,
	}, h.events.types())
	ev, _ := h.events.last(model.EventTakeProfitHit)
	assert.Equal(t, 1, ev.Level)
	require.NotNil(t, ev.Price)
	assert.Equal(t, 1.1830, *ev.Price)
}

func TestBreakevenRunsOnce(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	h.venue.vanish(legTicket(t, trade, 1))
	h.reconcile()
	require.Equal(t, 2, h.venue.modifyCount())

	h.reconcile()
	h.reconcile()
	assert.Equal(t, 2, h.venue.modifyCount())

	h.venue.vanish(legTicket(t, trade, 2))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusTP2Hit, got.Status)
	assert.Equal(t, 2, h.venue.modifyCount())
	assert.Equal(t, 1, countEvents(h, model.EventBreakevenApplied))
}

func TestTwoTargetsInOneTickReportHighest(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	h.venue.vanish(legTicket(t, trade, 1), legTicket(t, trade, 2))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusTP2Hit, got.Status)
	assert.Equal(t, 2, got.TPLevelHit)
	assert.NotNil(t, got.TP1HitAt)
	assert.NotNil(t, got.TP2HitAt)
	assert.Equal(t, 1, countEvents(h, model.EventTakeProfitHit))
	ev, _ := h.events.last(model.EventTakeProfitHit)
	assert.Equal(t, 2, ev.Level)

	require.Len(t, h.venue.modifies, 1)
	assert.Equal(t, 1.1805, *h.venue.modifies[0].stopLoss)
}

func TestWholeGroupVanishingIsStopLoss(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	h.venue.vanish(legTicket(t, trade, 1), legTicket(t, trade, 2), legTicket(t, trade, 3))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusSLHit, got.Status)
	assert.Zero(t, got.TPLevelHit)
	assert.NotNil(t, got.ClosedAt)
	assert.Empty(t, got.OpenLegs())
	assert.Zero(t, h.m.OpenCount())
	assert.Zero(t, countEvents(h, model.EventTakeProfitHit))
	assert.Zero(t, h.venue.modifyCount())

	ev, ok := h.events.last(model.EventStopLossHit)
	require.True(t, ok)
	require.NotNil(t, ev.Price)
	assert.Equal(t, 1.1750, *ev.Price)

	h.reconcile()
	assert.Equal(t, 1, countEvents(h, model.EventStopLossHit))
}

func TestRemainingLegsVanishingAfterTargetCloses(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	h.venue.vanish(legTicket(t, trade, 1))
	h.reconcile()
	h.venue.vanish(legTicket(t, trade, 2), legTicket(t, trade, 3))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusClosed, got.Status)
	assert.Equal(t, 3, got.TPLevelHit)
	assert.NotNil(t, got.TP3HitAt)
	assert.Equal(t, 1, countEvents(h, model.EventTradeClosed))
	assert.Zero(t, countEvents(h, model.EventStopLossHit))
}

func TestBreakevenRetriesFailedLegs(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)
	leg3 := legTicket(t, trade, 3)
	h.venue.modifyErr[leg3] = errors.New("trade context busy")

	h.venue.vanish(legTicket(t, trade, 1))
	h.reconcile()

	got := h.trade(trade.ID)
	assert.False(t, got.BreakevenApplied)
	assert.Equal(t, 1.1804, *got.LegByLevel(2).StopLoss)
	assert.Equal(t, 1.1750, *got.LegByLevel(3).StopLoss)
	assert.Zero(t, countEvents(h, model.EventBreakevenApplied))

	delete(h.venue.modifyErr, leg3)
	h.reconcile()

	got = h.trade(trade.ID)
	assert.True(t, got.BreakevenApplied)
	assert.Equal(t, 1.1805, *got.LegByLevel(3).StopLoss)
	require.Len(t, h.venue.modifies, 2)
	assert.Equal(t, leg3, h.venue.modifies[1].ticket)
	assert.Equal(t, 1, countEvents(h, model.EventBreakevenApplied))
}

func TestBreakevenNeverLoosensStop(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	trade := openEURUSD(t, h)

	// leg 3 was already trailed past breakeven by hand
	leg3 := legTicket(t, trade, 3)
	p := h.venue.positions[leg3]
	p.StopLoss = 1.1820
	h.venue.positions[leg3] = p

	h.venue.vanish(legTicket(t, trade, 1))
	h.reconcile()

	require.Len(t, h.venue.modifies, 1)
	assert.Equal(t, legTicket(t, trade, 2), h.venue.modifies[0].ticket)
	assert.True(t, h.trade(trade.ID).BreakevenApplied)
}

func TestLegsPlacedAfterSnapshotAreNotVanished(t *testing.T) {
	h := newHarness(testConfig(), newFakeVenue(1.1801, 1.1802, 1.1803))
	asOf := h.clock.Now().Add(-time.Second)
	trade := openEURUSD(t, h)

	h.m.Reconcile(context.Background(), nil, asOf)

	got := h.trade(trade.ID)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Len(t, got.OpenLegs(), 3)
}
