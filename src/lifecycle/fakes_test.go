package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/risk"
	"signalbridge/src/venue"
)

type fakeVenue struct {
	mu sync.Mutex

	fills      []float64
	placeErrs  []error
	placeCalls int
	nextTicket int64
	requests   []venue.OrderRequest

	positions map[int64]venue.Position
	modifies  []modifyCall
	modifyErr map[int64]error
	closed    []int64

	quote    venue.Quote
	quoteErr error
}

type modifyCall struct {
	ticket     int64
	stopLoss   *float64
	takeProfit *float64
}

func newFakeVenue(fills ...float64) *fakeVenue {
	return &fakeVenue{
		fills:      fills,
		nextTicket: 1000,
		positions:  map[int64]venue.Position{},
		modifyErr:  map[int64]error{},
	}
}

func (f *fakeVenue) PlaceMarketOrder(_ context.Context, req venue.OrderRequest) (venue.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.placeCalls
	f.placeCalls++
	if call < len(f.placeErrs) && f.placeErrs[call] != nil {
		return venue.Fill{}, f.placeErrs[call]
	}
	f.requests = append(f.requests, req)

	price := 1.0
	if n := len(f.requests) - 1; n < len(f.fills) {
		price = f.fills[n]
	}
	f.nextTicket++
	f.positions[f.nextTicket] = venue.Position{
		Ticket:     f.nextTicket,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Volume:     req.Lot,
		OpenPrice:  price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	return venue.Fill{Ticket: f.nextTicket, Price: price}, nil
}

func (f *fakeVenue) ModifyPosition(_ context.Context, ticket int64, stopLoss, takeProfit *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.modifyErr[ticket]; err != nil {
		return err
	}
	p, ok := f.positions[ticket]
	if !ok {
		return venue.ErrPositionNotFound
	}
	f.modifies = append(f.modifies, modifyCall{ticket: ticket, stopLoss: stopLoss, takeProfit: takeProfit})
	if stopLoss != nil {
		p.StopLoss = *stopLoss
	}
	if takeProfit != nil {
		p.TakeProfit = *takeProfit
	}
	f.positions[ticket] = p
	return nil
}

func (f *fakeVenue) ClosePosition(_ context.Context, ticket int64, _ *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.positions[ticket]; !ok {
		return venue.ErrPositionNotFound
	}
	delete(f.positions, ticket)
	f.closed = append(f.closed, ticket)
	return nil
}

func (f *fakeVenue) ListOpenPositions(context.Context) ([]venue.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]venue.Position, 0, len(f.positions))
	for _, p := range f.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (f *fakeVenue) GetQuote(_ context.Context, symbol string) (venue.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quoteErr != nil {
		return venue.Quote{}, f.quoteErr
	}
	q := f.quote
	q.Symbol = symbol
	return q, nil
}

func (f *fakeVenue) GetAccountSnapshot(context.Context) (venue.Account, error) {
	return venue.Account{Balance: 10000, Equity: 10000}, nil
}

// vanish drops tickets as if the venue closed them.
func (f *fakeVenue) vanish(tickets ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tickets {
		delete(f.positions, t)
	}
}

func (f *fakeVenue) snapshot() []venue.Position {
	out, _ := f.ListOpenPositions(context.Background())
	return out
}

func (f *fakeVenue) modifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modifies)
}

type fakeGate struct {
	decision risk.Decision
	seen     []int
}

func (g *fakeGate) Admit(_ context.Context, _ model.Signal, openTrades int) risk.Decision {
	g.seen = append(g.seen, openTrades)
	return g.decision
}

type fakeStore struct {
	mu    sync.Mutex
	saves []model.Trade
	open  []model.Trade
	err   error
}

func (s *fakeStore) Save(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, *t.Clone())
	return nil
}

func (s *fakeStore) ListOpen(context.Context) ([]model.Trade, error) {
	return s.open, nil
}

func (s *fakeStore) versions(id string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, t := range s.saves {
		if t.ID == id {
			out = append(out, t.Version)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []model.TradeEvent
}

func (l *eventLog) handle(_ context.Context, ev model.TradeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []model.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *eventLog) last(typ model.EventType) (model.TradeEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == typ {
			return l.events[i], true
		}
	}
	return model.TradeEvent{}, false
}

type harness struct {
	m      *Manager
	venue  *fakeVenue
	clock  *testClock
	events *eventLog
	sleeps []time.Duration
}

func testConfig() Config {
	return Config{
		ExecuteImmediately: true,
		PendingExpiry:      30 * time.Minute,
		DefaultLot:         0.10,
		LotStep:            0.01,
		MinLot:             0.01,
		LegSplit:           []int{50, 30, 20},
		InterOrderDelay:    300 * time.Millisecond,
		PlaceRetries:       3,
		RetryBackoff:       500 * time.Millisecond,
		BreakevenOffset:    0.0002,
		OrderComment:       "test",
	}
}

func newHarness(cfg Config, v *fakeVenue) *harness {
	h := &harness{
		venue:  v,
		clock:  &testClock{now: time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)},
		events: &eventLog{},
	}
	m := NewManager(cfg, v, nil)
	m.now = h.clock.Now
	m.sleep = func(_ context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return true
	}
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("trade-%d", seq)
	}
	m.Bus().Subscribe(h.events.handle)
	h.m = m
	return h
}

func (h *harness) reconcile() {
	h.m.Reconcile(context.Background(), h.venue.snapshot(), h.clock.Now())
}

func (h *harness) trade(id string) model.Trade {
	v, _ := h.m.View().Trade(id)
	return v.Trade
}

var signalSeq int

func eurusdLong() model.Signal {
	signalSeq++
	return model.Signal{
		ID:          fmt.Sprintf("sig-%d", signalSeq),
		ChannelID:   "channel",
		MessageID:   fmt.Sprintf("%d", signalSeq),
		Intent:      model.IntentNewTrade,
		Symbol:      "EURUSD",
		Direction:   model.DirectionLong,
		EntryMin:    model.Float(1.1795),
		EntryMax:    model.Float(1.1800),
		StopLoss:    model.Float(1.1750),
		TakeProfits: []float64{1.1830, 1.1860, 1.1900},
		LotSize:     model.Float(0.10),
		Parsed:      true,
	}
}

func management(intent model.Intent, symbol string) model.Signal {
	signalSeq++
	return model.Signal{
		ID:        fmt.Sprintf("sig-%d", signalSeq),
		ChannelID: "channel",
		MessageID: fmt.Sprintf("%d", signalSeq),
		Intent:    intent,
		Symbol:    symbol,
		Parsed:    true,
	}
}
