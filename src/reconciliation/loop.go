package reconciliation

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalbridge/src/utils"
	"signalbridge/src/venue"
)

type reconciler interface {
	CheckPending(ctx context.Context)
	Reconcile(ctx context.Context, positions []venue.Position, asOf time.Time)
	RefreshPnL(positions []venue.Position)
}

type positionLister interface {
	ListOpenPositions(ctx context.Context) ([]venue.Position, error)
}

// Loop is the single worker that observes the venue. Each tick fetches the
// open positions once and hands the same snapshot to reconciliation and,
// every PnLEvery ticks, to the P&L pass.
type Loop struct {
	cfg     Config
	venue   positionLister
	manager reconciler

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	ticks int
}

func NewLoop(cfg Config, v positionLister, m reconciler) *Loop {
	return &Loop{
		cfg:     cfg,
		venue:   v,
		manager: m,
		now:     time.Now,
		sleep:   utils.SleepContext,
	}
}

// Start runs until ctx is cancelled.
func (l *Loop) Start(ctx context.Context) error {
	if l.cfg.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", l.cfg.Interval)
	}
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	logger.WithFields(map[string]interface{}{
		"component": "Reconciliation",
		"interval":  l.cfg.Interval.String(),
		"pnl_every": l.cfg.PnLEvery,
	}).Info("Reconciliation loop started")

	for {
		select {
		case <-ctx.Done():
			logger.WithField("component", "Reconciliation").Info("Reconciliation loop stopped")
			return nil

		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.sleep(ctx, l.cfg.ErrorBackoff)
			}
		}
	}
}

// Tick runs one pass. Pending entries are checked first so fills made in
// this pass are part of the snapshot.
func (l *Loop) Tick(ctx context.Context) error {
	l.manager.CheckPending(ctx)

	asOf := l.now()
	callCtx := ctx
	if l.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.cfg.CallTimeout)
		defer cancel()
	}

	positions, err := l.venue.ListOpenPositions(callCtx)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "Reconciliation",
			"backoff":   l.cfg.ErrorBackoff.String(),
		}).WithError(err).Warn("Failed to list open positions, retrying next tick")
		return fmt.Errorf("list open positions: %w", err)
	}

	l.manager.Reconcile(ctx, positions, asOf)

	l.ticks++
	if l.cfg.PnLEvery > 0 && l.ticks%l.cfg.PnLEvery == 0 {
		l.manager.RefreshPnL(positions)
	}

	logger.WithFields(map[string]interface{}{
		"component": "Reconciliation",
		"positions": len(positions),
		"tick":      l.ticks,
	}).Debug("Reconciliation tick")
	return nil
}
