package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"signalbridge/src/model"
	"signalbridge/src/risk"
	"signalbridge/src/utils"
	"signalbridge/src/venue"
)

var (
	ErrNoTarget     = errors.New("no open trade matches the message")
	ErrDuplicate    = errors.New("signal already produced a trade")
	ErrUnknownTrade = errors.New("unknown trade")
)

type tradeStore interface {
	Save(ctx context.Context, t *model.Trade) error
	ListOpen(ctx context.Context) ([]model.Trade, error)
}

type admissionGate interface {
	Admit(ctx context.Context, sig model.Signal, openTrades int) risk.Decision
}

// change is a committed mutation waiting to be persisted and published.
type change struct {
	snap   *model.Trade
	events []model.TradeEvent
}

// Manager owns every trade. All mutations go through mutate, which holds
// mu only for bookkeeping; venue calls happen outside it. Work on a single
// trade is serialized by a per trade lock taken before mu.
type Manager struct {
	cfg      Config
	venue    venue.Venue
	gate     admissionGate
	store    tradeStore
	bus      *Bus
	view     *ReadModel
	resolver Resolver
	logger   *logrus.Entry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	newID func() string

	mu       sync.Mutex
	trades   map[string]*model.Trade
	order    []string
	bySource map[string]string
	reserved int

	tradeLocks sync.Map

	persistMu sync.Mutex
	saved     map[string]int64
}

func NewManager(cfg Config, v venue.Venue, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		cfg:      cfg,
		venue:    v,
		bus:      NewBus(),
		view:     NewReadModel(),
		resolver: MostRecentResolver{},
		logger:   logger.WithField("component", "TradeManager"),
		now:      time.Now,
		sleep:    utils.SleepContext,
		newID:    utils.NewID,
		trades:   map[string]*model.Trade{},
		bySource: map[string]string{},
		saved:    map[string]int64{},
	}
}

func (m *Manager) WithGate(g admissionGate) *Manager {
	m.gate = g
	return m
}

func (m *Manager) WithStore(s tradeStore) *Manager {
	m.store = s
	return m
}

func (m *Manager) WithResolver(r Resolver) *Manager {
	m.resolver = r
	return m
}

func (m *Manager) WithBus(b *Bus) *Manager {
	m.bus = b
	return m
}

func (m *Manager) Bus() *Bus { return m.bus }

func (m *Manager) View() *ReadModel { return m.view }

// Load restores non-terminal trades from the store. Trades interrupted
// during placement resume as Active with whatever legs were filled.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	trades, err := m.store.ListOpen(ctx)
	if err != nil {
		return err
	}

	var changes []*change
	m.mu.Lock()
	now := m.now()
	for i := range trades {
		t := trades[i].Clone()
		if _, ok := m.trades[t.ID]; ok {
			continue
		}
		m.trades[t.ID] = t
		m.order = append(m.order, t.ID)
		m.bySource[sourceKey(t.ChannelID, t.MessageID)] = t.ID
		m.persistMu.Lock()
		m.saved[t.ID] = t.Version
		m.persistMu.Unlock()

		if t.Status == model.StatusWaiting && t.PlacedLegs() > 0 {
			for j := range t.Legs {
				if t.Legs[j].Ticket == 0 && t.Legs[j].Error == "" {
					t.Legs[j].Error = "not placed before restart"
				}
			}
			t.Status = model.StatusActive
			if t.OpenedAt == nil {
				t.OpenedAt = &now
			}
			changes = append(changes, m.commitLocked(t, now))
			continue
		}
		changes = append(changes, &change{snap: t.Clone()})
	}
	m.mu.Unlock()

	for _, ch := range changes {
		m.apply(ctx, ch)
	}
	m.logger.WithField("trades", len(trades)).Info("Restored open trades")
	return nil
}

// Handle routes an interpreted signal to the matching operation.
func (m *Manager) Handle(ctx context.Context, sig model.Signal) error {
	if !sig.Parsed {
		return nil
	}
	switch sig.Intent {
	case model.IntentNewTrade:
		_, err := m.Open(ctx, sig)
		return err
	case model.IntentUpdateStopLoss:
		return m.UpdateStopLoss(ctx, sig)
	case model.IntentUpdateTakeProfit:
		return m.UpdateTakeProfit(ctx, sig)
	case model.IntentCloseTrade:
		if sig.Cancel {
			return m.Cancel(ctx, sig)
		}
		return m.Close(ctx, sig)
	case model.IntentBreakeven:
		return m.Breakeven(ctx, sig)
	case model.IntentTakeProfitHit:
		return m.TakeProfitReported(ctx, sig)
	case model.IntentStopLossHit:
		return m.StopLossReported(ctx, sig)
	default:
		return nil
	}
}

// OpenCount is the number of non-terminal trades.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCountLocked()
}

func (m *Manager) openCountLocked() int {
	n := 0
	for _, t := range m.trades {
		if !t.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// tradeIDs returns ids in creation order for trades matching keep.
func (m *Manager) tradeIDs(keep func(t *model.Trade) bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.order {
		if keep(m.trades[id]) {
			out = append(out, id)
		}
	}
	return out
}

// snapshot returns a copy of the trade for use outside the lock.
func (m *Manager) snapshot(id string) (*model.Trade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// lockTrade serializes venue work on one trade.
func (m *Manager) lockTrade(id string) func() {
	v, _ := m.tradeLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// resolve picks the target trade for a management signal.
func (m *Manager) resolve(sig model.Signal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*model.Trade
	for _, id := range m.order {
		t := m.trades[id]
		if !t.Status.IsTerminal() {
			candidates = append(candidates, t)
		}
	}
	target := m.resolver.Resolve(sig, candidates)
	if target == nil {
		return "", ErrNoTarget
	}
	return target.ID, nil
}

// mutate applies fn to the live trade under the lock. fn reports whether
// it changed anything; only then is a new version committed.
func (m *Manager) mutate(id string, fn func(t *model.Trade, now time.Time) ([]model.TradeEvent, bool)) (*change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[id]
	if !ok {
		return nil, ErrUnknownTrade
	}
	now := m.now()
	events, changed := fn(t, now)
	if !changed {
		return nil, nil
	}
	ch := m.commitLocked(t, now)
	ch.events = events
	return ch, nil
}

func (m *Manager) commitLocked(t *model.Trade, now time.Time) *change {
	t.Version++
	t.UpdatedAt = now
	return &change{snap: t.Clone()}
}

// apply persists, publishes to the read model, then emits events.
// It runs outside mu.
func (m *Manager) apply(ctx context.Context, ch *change) {
	if ch == nil {
		return
	}
	m.persist(ctx, ch.snap)
	m.view.upsert(ch.snap)
	if m.bus != nil && len(ch.events) > 0 {
		m.bus.Publish(ctx, ch.events...)
	}
}

func sourceKey(channelID, messageID string) string {
	return model.Signal{ChannelID: channelID, MessageID: messageID}.SourceKey()
}
