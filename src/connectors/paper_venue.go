package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

type quoteSource interface {
	GetQuote(ctx context.Context, symbol string) (venue.Quote, error)
}

// PaperVenue simulates execution against live quotes. Positions are held in
// memory and closed when the quote crosses their stop or target.
type PaperVenue struct {
	quotes quoteSource
	suffix string

	mu         sync.Mutex
	nextTicket int64
	positions  map[int64]*venue.Position
	balance    decimal.Decimal
}

var _ venue.Venue = (*PaperVenue)(nil)

func NewPaperVenue(cfg Config, quotes quoteSource) *PaperVenue {
	return &PaperVenue{
		quotes:     quotes,
		suffix:     cfg.PaperSuffix,
		nextTicket: 1,
		positions:  map[int64]*venue.Position{},
		balance:    decimal.NewFromFloat(cfg.PaperBalance),
	}
}

func (p *PaperVenue) PlaceMarketOrder(ctx context.Context, req venue.OrderRequest) (venue.Fill, error) {
	if req.Lot <= 0 {
		return venue.Fill{}, fmt.Errorf("%w: lot must be positive", venue.ErrOrderRejected)
	}
	q, err := p.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return venue.Fill{}, err
	}
	price := q.Ask
	if req.Direction == model.DirectionShort {
		price = q.Bid
	}

	p.mu.Lock()
	ticket := p.nextTicket
	p.nextTicket++
	p.positions[ticket] = &venue.Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Volume:       req.Lot,
		OpenPrice:    price,
		CurrentPrice: price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
	}
	p.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"component": "PaperVenue",
		"symbol":    req.Symbol,
		"ticket":    ticket,
		"price":     price,
		"lot":       req.Lot,
	}).Info("Paper order filled")
	return venue.Fill{Ticket: ticket, Price: price}, nil
}

func (p *PaperVenue) ModifyPosition(_ context.Context, ticket int64, stopLoss, takeProfit *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticket]
	if !ok {
		return venue.ErrPositionNotFound
	}
	if stopLoss != nil {
		pos.StopLoss = *stopLoss
	}
	if takeProfit != nil {
		pos.TakeProfit = *takeProfit
	}
	return nil
}

func (p *PaperVenue) ClosePosition(_ context.Context, ticket int64, volume *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticket]
	if !ok {
		return venue.ErrPositionNotFound
	}
	if volume != nil && *volume > 0 && *volume < pos.Volume {
		part := *pos
		part.Volume = *volume
		p.realizeLocked(&part, pos.CurrentPrice)
		pos.Volume = decimal.NewFromFloat(pos.Volume).Sub(decimal.NewFromFloat(*volume)).InexactFloat64()
		return nil
	}
	p.realizeLocked(pos, pos.CurrentPrice)
	delete(p.positions, ticket)
	return nil
}

// ListOpenPositions marks every position to the latest quote and settles
// those whose stop or target was crossed.
func (p *PaperVenue) ListOpenPositions(ctx context.Context) ([]venue.Position, error) {
	quotes := map[string]venue.Quote{}
	for _, sym := range p.symbols() {
		q, err := p.quotes.GetQuote(ctx, sym)
		if err != nil {
			return nil, err
		}
		quotes[sym] = q
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]venue.Position, 0, len(p.positions))
	for ticket, pos := range p.positions {
		q, ok := quotes[pos.Symbol]
		if !ok {
			out = append(out, *pos)
			continue
		}
		mark := q.Bid
		if pos.Direction == model.DirectionShort {
			mark = q.Ask
		}
		pos.CurrentPrice = mark
		pos.Profit = p.profit(pos, mark)

		if exit, hit := crossed(pos, mark); hit {
			p.realizeLocked(pos, exit)
			delete(p.positions, ticket)
			logger.WithFields(map[string]interface{}{
				"component": "PaperVenue",
				"ticket":    ticket,
				"exit":      exit,
			}).Info("Paper position closed at stop or target")
			continue
		}
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (p *PaperVenue) GetQuote(ctx context.Context, symbol string) (venue.Quote, error) {
	return p.quotes.GetQuote(ctx, symbol)
}

func (p *PaperVenue) GetAccountSnapshot(_ context.Context) (venue.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	floating := decimal.Zero
	for _, pos := range p.positions {
		floating = floating.Add(decimal.NewFromFloat(pos.Profit))
	}
	balance := p.balance.InexactFloat64()
	equity := p.balance.Add(floating).InexactFloat64()
	return venue.Account{
		Balance:    balance,
		Equity:     equity,
		FreeMargin: equity,
		Currency:   "USD",
	}, nil
}

func (p *PaperVenue) symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, pos := range p.positions {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			out = append(out, pos.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

func (p *PaperVenue) realizeLocked(pos *venue.Position, exit float64) {
	p.balance = p.balance.Add(decimal.NewFromFloat(p.profit(pos, exit)))
}

func (p *PaperVenue) profit(pos *venue.Position, mark float64) float64 {
	meta := venue.Meta(venue.FromBrokerSymbol(pos.Symbol, p.suffix))
	move := decimal.NewFromFloat(mark).Sub(decimal.NewFromFloat(pos.OpenPrice))
	if pos.Direction == model.DirectionShort {
		move = move.Neg()
	}
	return move.
		Mul(decimal.NewFromFloat(pos.Volume)).
		Mul(decimal.NewFromFloat(meta.ContractSize)).
		Round(2).
		InexactFloat64()
}

// crossed reports whether mark reached the stop or target, and the price
// the position exits at.
func crossed(pos *venue.Position, mark float64) (float64, bool) {
	switch pos.Direction {
	case model.DirectionShort:
		if pos.StopLoss > 0 && mark >= pos.StopLoss {
			return pos.StopLoss, true
		}
		if pos.TakeProfit > 0 && mark <= pos.TakeProfit {
			return pos.TakeProfit, true
		}
	default:
		if pos.StopLoss > 0 && mark <= pos.StopLoss {
			return pos.StopLoss, true
		}
		if pos.TakeProfit > 0 && mark >= pos.TakeProfit {
			return pos.TakeProfit, true
		}
	}
	return 0, false
}
