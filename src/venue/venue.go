package venue

import (
	"context"
	"errors"
	"time"

	"signalbridge/src/model"
)

var (
	// ErrPositionNotFound is returned when a ticket is no longer open at the venue.
	ErrPositionNotFound = errors.New("position not found")
	// ErrOrderRejected is returned when the venue refuses an order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrNoQuote is returned when the venue has no price for a symbol.
	ErrNoQuote = errors.New("no quote available")
)

// Venue is the brokerage session used by the bridge.
type Venue interface {
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (Fill, error)
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit *float64) error
	ClosePosition(ctx context.Context, ticket int64, volume *float64) error
	ListOpenPositions(ctx context.Context) ([]Position, error)
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetAccountSnapshot(ctx context.Context) (Account, error)
}

type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Direction  model.Direction `json:"direction"`
	Lot        float64         `json:"lot"`
	StopLoss   float64         `json:"stop_loss,omitempty"`
	TakeProfit float64         `json:"take_profit,omitempty"`
	Comment    string          `json:"comment,omitempty"`
}

type Fill struct {
	Ticket int64   `json:"ticket"`
	Price  float64 `json:"price"`
}

type Position struct {
	Ticket       int64           `json:"ticket"`
	Symbol       string          `json:"symbol"`
	Direction    model.Direction `json:"direction"`
	Volume       float64         `json:"volume"`
	OpenPrice    float64         `json:"open_price"`
	CurrentPrice float64         `json:"current_price"`
	StopLoss     float64         `json:"stop_loss"`
	TakeProfit   float64         `json:"take_profit"`
	Profit       float64         `json:"profit"`
}

type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Spread returns ask minus bid in price units.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

type Account struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Currency   string  `json:"currency"`
}

// TicketSet indexes a position snapshot by ticket.
func TicketSet(positions []Position) map[int64]Position {
	out := make(map[int64]Position, len(positions))
	for _, p := range positions {
		out[p.Ticket] = p
	}
	return out
}
