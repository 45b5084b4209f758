package lifecycle

import (
	"sort"
	"sync"
	"sync/atomic"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

// TradeView is a read-only copy of a trade plus its last known P&L.
type TradeView struct {
	model.Trade
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

type viewState struct {
	trades []TradeView // newest first
	byID   map[string]int
}

// ReadModel serves trade snapshots without touching the manager lock.
// Writers build a new state and swap it in; readers never block.
type ReadModel struct {
	mu    sync.Mutex
	state atomic.Pointer[viewState]
}

func NewReadModel() *ReadModel {
	r := &ReadModel{}
	r.state.Store(&viewState{byID: map[string]int{}})
	return r
}

// Trades returns every known trade, newest first.
func (r *ReadModel) Trades() []TradeView {
	s := r.state.Load()
	out := make([]TradeView, len(s.trades))
	copy(out, s.trades)
	return out
}

// Open returns the trades that are not retired.
func (r *ReadModel) Open() []TradeView {
	var out []TradeView
	for _, t := range r.state.Load().trades {
		if !t.Status.IsTerminal() {
			out = append(out, t)
		}
	}
	return out
}

func (r *ReadModel) Trade(id string) (TradeView, bool) {
	s := r.state.Load()
	i, ok := s.byID[id]
	if !ok {
		return TradeView{}, false
	}
	return s.trades[i], true
}

// upsert stores a committed snapshot. Older versions never replace newer ones.
// The snapshot must not be modified afterwards.
func (r *ReadModel) upsert(snap *model.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state.Load()
	trades := make([]TradeView, len(prev.trades), len(prev.trades)+1)
	copy(trades, prev.trades)

	if i, ok := prev.byID[snap.ID]; ok {
		if trades[i].Version > snap.Version {
			return
		}
		trades[i] = TradeView{Trade: *snap, UnrealizedPnL: trades[i].UnrealizedPnL}
	} else {
		trades = append(trades, TradeView{Trade: *snap})
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].CreatedAt.After(trades[j].CreatedAt)
		})
	}
	r.state.Store(newViewState(trades))
}

// RefreshPnL recomputes unrealized P&L per trade from a position snapshot.
func (r *ReadModel) RefreshPnL(positions []venue.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := venue.TicketSet(positions)
	prev := r.state.Load()
	trades := make([]TradeView, len(prev.trades))
	for i, t := range prev.trades {
		total := 0.0
		for _, l := range t.Legs {
			if p, ok := live[l.Ticket]; ok && l.IsOpen() {
				total += p.Profit
			}
		}
		t.UnrealizedPnL = total
		trades[i] = t
	}
	r.state.Store(&viewState{trades: trades, byID: prev.byID})
}

func newViewState(trades []TradeView) *viewState {
	byID := make(map[string]int, len(trades))
	for i, t := range trades {
		byID[t.ID] = i
	}
	return &viewState{trades: trades, byID: byID}
}
