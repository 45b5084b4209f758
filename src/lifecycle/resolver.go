package lifecycle

import (
	"signalbridge/src/model"
)

// Resolver picks the trade a management message refers to.
// candidates are the non-retired trades, oldest first.
type Resolver interface {
	Resolve(sig model.Signal, candidates []*model.Trade) *model.Trade
}

// MostRecentResolver targets the newest trade on the signal's symbol,
// or the newest trade overall when the message names no symbol.
type MostRecentResolver struct{}

func (MostRecentResolver) Resolve(sig model.Signal, candidates []*model.Trade) *model.Trade {
	for i := len(candidates) - 1; i >= 0; i-- {
		t := candidates[i]
		if sig.Symbol != "" && t.Symbol != sig.Symbol {
			continue
		}
		return t
	}
	return nil
}
