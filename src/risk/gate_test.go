package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/venue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVenueReader struct {
	account    venue.Account
	accountErr error
	quotes     map[string]venue.Quote
	quoteErr   error
	quoteCalls []string
}

func (f *fakeVenueReader) GetAccountSnapshot(context.Context) (venue.Account, error) {
	return f.account, f.accountErr
}

func (f *fakeVenueReader) GetQuote(_ context.Context, symbol string) (venue.Quote, error) {
	f.quoteCalls = append(f.quoteCalls, symbol)
	if f.quoteErr != nil {
		return venue.Quote{}, f.quoteErr
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return venue.Quote{}, venue.ErrNoQuote
	}
	return q, nil
}

// Tuesday, market open
var gateNow = time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		EnableNoTradeWindow: true,
		MaxDailyDrawdownPct: 5,
		MaxOpenTrades:       3,
		MaxSpreadPips:       3,
		SpreadOverrides:     map[string]float64{"XAUUSD": 40},
	}
}

func newTestGate(t *testing.T, cfg Config, v *fakeVenueReader) *Gate {
	t.Helper()
	g, err := NewGate(cfg, v)
	require.NoError(t, err)
	g.now = func() time.Time { return gateNow }
	return g
}

func healthyVenue() *fakeVenueReader {
	return &fakeVenueReader{
		account: venue.Account{Balance: 10000, Equity: 9900},
		quotes: map[string]venue.Quote{
			"EURUSD": {Symbol: "EURUSD", Bid: 1.1800, Ask: 1.1801},
			"XAUUSD": {Symbol: "XAUUSD", Bid: 2350.0, Ask: 2352.0},
		},
	}
}

func eurusdSignal() model.Signal {
	return model.Signal{Symbol: "EURUSD", Direction: model.DirectionLong, Intent: model.IntentNewTrade}
}

func TestGateAdmits(t *testing.T) {
	g := newTestGate(t, testConfig(), healthyVenue())

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.True(t, d.Allowed, d.Reason)

	gold := eurusdSignal()
	gold.Symbol = "XAUUSD"
	d = g.Admit(context.Background(), gold, 0)
	assert.True(t, d.Allowed, d.Reason)
}

func TestGateRejectsWhenMarketClosed(t *testing.T) {
	g := newTestGate(t, testConfig(), healthyVenue())
	g.now = func() time.Time { return time.Date(2025, time.March, 8, 12, 0, 0, 0, time.UTC) }

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckMarketHours, d.Check)
}

func TestGateRejectsOutsideTradingHours(t *testing.T) {
	cfg := testConfig()
	cfg.TradingHours = "13:00-20:00"
	g := newTestGate(t, cfg, healthyVenue())

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckTradingHours, d.Check)
	assert.Contains(t, d.Reason, "13:00-20:00")
}

func TestGateRejectsOnDailyDrawdown(t *testing.T) {
	v := healthyVenue()
	v.account = venue.Account{Balance: 10000, Equity: 10000}
	g := newTestGate(t, testConfig(), v)

	require.True(t, g.Admit(context.Background(), eurusdSignal(), 0).Allowed)

	// balance and equity fall later the same day; the day start stays at 10000
	v.account = venue.Account{Balance: 9600, Equity: 9400}
	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckDrawdown, d.Check)
	assert.Contains(t, d.Reason, "6.00%")

	// next UTC day records a fresh day start
	g.now = func() time.Time { return gateNow.Add(24 * time.Hour) }
	d = g.Admit(context.Background(), eurusdSignal(), 0)
	assert.True(t, d.Allowed, d.Reason)
}

func TestGateFailsClosedWithoutAccount(t *testing.T) {
	v := healthyVenue()
	v.accountErr = errors.New("bridge down")
	g := newTestGate(t, testConfig(), v)

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckDrawdown, d.Check)
	assert.Contains(t, d.Reason, "bridge down")
}

func TestGateRejectsAtConcurrencyLimit(t *testing.T) {
	g := newTestGate(t, testConfig(), healthyVenue())

	d := g.Admit(context.Background(), eurusdSignal(), 3)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckConcurrency, d.Check)
}

func TestGateRejectsWideSpread(t *testing.T) {
	v := healthyVenue()
	v.quotes["EURUSD"] = venue.Quote{Symbol: "EURUSD", Bid: 1.1800, Ask: 1.1805}
	g := newTestGate(t, testConfig(), v)

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckSpread, d.Check)
}

func TestGateRejectsWithoutQuote(t *testing.T) {
	v := healthyVenue()
	v.quoteErr = errors.New("timeout")
	g := newTestGate(t, testConfig(), v)

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, CheckSpread, d.Check)
}

func TestGateUsesBrokerSymbolForQuotes(t *testing.T) {
	v := healthyVenue()
	v.quotes["EURUSDm"] = venue.Quote{Symbol: "EURUSDm", Bid: 1.1800, Ask: 1.1801}
	g := newTestGate(t, testConfig(), v).WithSymbolMapper(func(s string) string { return s + "m" })

	d := g.Admit(context.Background(), eurusdSignal(), 0)
	assert.True(t, d.Allowed, d.Reason)
	assert.Equal(t, []string{"EURUSDm"}, v.quoteCalls)
}

func TestNewGateInvalidHours(t *testing.T) {
	cfg := testConfig()
	cfg.TradingHours = "bad"
	_, err := NewGate(cfg, healthyVenue())
	assert.Error(t, err)
}
