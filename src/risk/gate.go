package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/utils"
	"signalbridge/src/venue"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	CheckMarketHours  = "market_hours"
	CheckTradingHours = "trading_hours"
	CheckDrawdown     = "daily_drawdown"
	CheckConcurrency  = "max_open_trades"
	CheckSpread       = "spread"
)

type venueReader interface {
	GetAccountSnapshot(ctx context.Context) (venue.Account, error)
	GetQuote(ctx context.Context, symbol string) (venue.Quote, error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Check   string
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func reject(check, format string, args ...interface{}) Decision {
	return Decision{Check: check, Reason: fmt.Sprintf(format, args...)}
}

// Gate decides whether a new trade may open. Any failure to read
// account or price data rejects the trade.
type Gate struct {
	cfg    Config
	window *TradingWindow
	venue  venueReader

	brokerSymbol func(string) string
	now          func() time.Time

	mu              sync.Mutex
	day             string
	dayStartBalance decimal.Decimal
}

func NewGate(cfg Config, v venueReader) (*Gate, error) {
	window, err := ParseTradingWindow(cfg.TradingHours)
	if err != nil {
		return nil, err
	}
	return &Gate{
		cfg:          cfg,
		window:       window,
		venue:        v,
		brokerSymbol: func(s string) string { return s },
		now:          time.Now,
	}, nil
}

// WithSymbolMapper sets the canonical to broker symbol mapping used for quotes.
func (g *Gate) WithSymbolMapper(fn func(string) string) *Gate {
	g.brokerSymbol = fn
	return g
}

// Admit runs the checks in order: market hours, trading window, daily
// drawdown, open trade count, spread. The first failure decides.
func (g *Gate) Admit(ctx context.Context, sig model.Signal, openTrades int) Decision {
	now := g.now()
	d := g.admit(ctx, sig, openTrades, now)

	fields := map[string]interface{}{
		"component":   "RiskGate",
		"symbol":      sig.Symbol,
		"direction":   sig.Direction,
		"open_trades": openTrades,
		"session":     SessionAt(now, false),
	}
	if d.Allowed {
		logger.WithFields(fields).Info("Trade admitted")
	} else {
		fields["check"] = d.Check
		fields["reason"] = d.Reason
		logger.WithFields(fields).Warn("Trade rejected by risk gate")
	}
	return d
}

func (g *Gate) admit(ctx context.Context, sig model.Signal, openTrades int, now time.Time) Decision {
	if g.cfg.EnableNoTradeWindow && MarketClosed(now) {
		return reject(CheckMarketHours, "market closed (weekend or holiday)")
	}

	if !g.window.Contains(now) {
		return reject(CheckTradingHours, "outside trading hours %s UTC", g.window)
	}

	if g.cfg.MaxDailyDrawdownPct > 0 {
		acct, err := g.venue.GetAccountSnapshot(ctx)
		if err != nil {
			return reject(CheckDrawdown, "account snapshot unavailable: %v", err)
		}
		start := g.dayStart(now, acct.Balance)
		if start.GreaterThan(decimal.Zero) {
			dd := start.Sub(decimal.NewFromFloat(acct.Equity)).Div(start).Mul(decimal.NewFromInt(100))
			limit := decimal.NewFromFloat(g.cfg.MaxDailyDrawdownPct)
			if dd.GreaterThanOrEqual(limit) {
				return reject(CheckDrawdown, "daily drawdown %s%% reached limit %s%%", dd.StringFixed(2), limit.StringFixed(2))
			}
		}
	}

	if g.cfg.MaxOpenTrades > 0 && openTrades >= g.cfg.MaxOpenTrades {
		return reject(CheckConcurrency, "%d open trades, limit %d", openTrades, g.cfg.MaxOpenTrades)
	}

	if limit := g.spreadLimit(sig.Symbol); limit > 0 {
		quote, err := g.venue.GetQuote(ctx, g.brokerSymbol(sig.Symbol))
		if err != nil {
			return reject(CheckSpread, "quote unavailable: %v", err)
		}
		pips := decimal.NewFromFloat(quote.Spread()).Div(decimal.NewFromFloat(venue.PipSize(sig.Symbol)))
		if pips.GreaterThan(decimal.NewFromFloat(limit)) {
			return reject(CheckSpread, "spread %s pips above limit %.1f", pips.StringFixed(1), limit)
		}
	}

	return allow()
}

// dayStart returns the balance recorded at the first check of the UTC day.
func (g *Gate) dayStart(now time.Time, balance float64) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := utils.DayKey(now)
	if key != g.day {
		g.day = key
		g.dayStartBalance = decimal.NewFromFloat(balance)
		logger.WithFields(map[string]interface{}{
			"component": "RiskGate",
			"day":       key,
			"balance":   balance,
		}).Info("Recorded day start balance")
	}
	return g.dayStartBalance
}

func (g *Gate) spreadLimit(symbol string) float64 {
	if v, ok := g.cfg.SpreadOverrides[symbol]; ok {
		return v
	}
	return g.cfg.MaxSpreadPips
}
