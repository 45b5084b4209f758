package model

import (
	"time"
)

type TradeStatus string

const (
	StatusWaiting   TradeStatus = "waiting"
	StatusActive    TradeStatus = "active"
	StatusTP1Hit    TradeStatus = "tp1_hit"
	StatusTP2Hit    TradeStatus = "tp2_hit"
	StatusTP3Hit    TradeStatus = "tp3_hit"
	StatusBreakeven TradeStatus = "breakeven"
	StatusSLHit     TradeStatus = "sl_hit"
	StatusClosed    TradeStatus = "closed"
	StatusCancelled TradeStatus = "cancelled"
	StatusFailed    TradeStatus = "failed"
	StatusRejected  TradeStatus = "rejected"
)

// TerminalStatuses are the statuses a trade never leaves.
// SLHit is only reached once every leg is gone, so it is retired too.
var TerminalStatuses = []TradeStatus{
	StatusClosed,
	StatusCancelled,
	StatusFailed,
	StatusRejected,
	StatusSLHit,
}

func (s TradeStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// TPHitStatus maps a target level to its status.
func TPHitStatus(level int) TradeStatus {
	switch level {
	case 1:
		return StatusTP1Hit
	case 2:
		return StatusTP2Hit
	default:
		return StatusTP3Hit
	}
}

// Trade groups the legs opened for one NewTrade signal.
type Trade struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SignalID  string    `gorm:"size:36;index" json:"signal_id"`
	ChannelID string    `gorm:"size:100;index:idx_trades_source" json:"channel_id"`
	MessageID string    `gorm:"size:100;index:idx_trades_source" json:"message_id"`
	Symbol    string    `gorm:"size:30;index" json:"symbol"`
	Direction Direction `gorm:"size:10" json:"direction"`

	EntryMin   *float64 `json:"entry_min,omitempty"`
	EntryMax   *float64 `json:"entry_max,omitempty"`
	EntryPrice *float64 `json:"entry_price,omitempty"`

	StopLoss    *float64 `json:"stop_loss,omitempty"`
	TakeProfit1 *float64 `json:"take_profit_1,omitempty"`
	TakeProfit2 *float64 `json:"take_profit_2,omitempty"`
	TakeProfit3 *float64 `json:"take_profit_3,omitempty"`

	RequestedLot float64 `json:"requested_lot"`

	Status           TradeStatus `gorm:"size:20;index" json:"status"`
	TPLevelHit       int         `json:"tp_level_hit"`
	BreakevenApplied bool        `json:"breakeven_applied"`
	Reason           string      `gorm:"type:text" json:"reason,omitempty"`

	// Version increases on every mutation; snapshots are persisted in version order.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	TP1HitAt  *time.Time `json:"tp1_hit_at,omitempty"`
	TP2HitAt  *time.Time `json:"tp2_hit_at,omitempty"`
	TP3HitAt  *time.Time `json:"tp3_hit_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	Legs []Leg `gorm:"foreignKey:TradeID;references:ID;constraint:OnDelete:CASCADE" json:"legs"`
}

// Leg is one venue position of a trade. A leg with Ticket 0 was never placed.
type Leg struct {
	TradeID    string   `gorm:"primaryKey;size:36" json:"trade_id"`
	Level      int      `gorm:"primaryKey;autoIncrement:false" json:"level"`
	Lot        float64  `json:"lot"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`

	Ticket    int64   `gorm:"index" json:"ticket,omitempty"`
	FillPrice float64 `json:"fill_price,omitempty"`
	Error     string  `gorm:"type:text" json:"error,omitempty"`

	PlacedAt *time.Time `json:"placed_at,omitempty"`

	Closed   bool       `json:"closed"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the leg is live at the venue as far as we know.
func (l Leg) IsOpen() bool {
	return l.Ticket != 0 && !l.Closed
}

// TakeProfits returns the target prices in level order.
func (t *Trade) TakeProfits() []float64 {
	var out []float64
	for _, tp := range []*float64{t.TakeProfit1, t.TakeProfit2, t.TakeProfit3} {
		if tp != nil {
			out = append(out, *tp)
		}
	}
	return out
}

// SetTakeProfits stores up to three targets in level order.
func (t *Trade) SetTakeProfits(tps []float64) {
	slots := []**float64{&t.TakeProfit1, &t.TakeProfit2, &t.TakeProfit3}
	for i, slot := range slots {
		if i < len(tps) {
			*slot = Float(tps[i])
		} else {
			*slot = nil
		}
	}
}

func (t *Trade) OpenLegs() []*Leg {
	var out []*Leg
	for i := range t.Legs {
		if t.Legs[i].IsOpen() {
			out = append(out, &t.Legs[i])
		}
	}
	return out
}

func (t *Trade) PlacedLegs() int {
	n := 0
	for _, l := range t.Legs {
		if l.Ticket != 0 {
			n++
		}
	}
	return n
}

func (t *Trade) LegByLevel(level int) *Leg {
	for i := range t.Legs {
		if t.Legs[i].Level == level {
			return &t.Legs[i]
		}
	}
	return nil
}

// HasClosedLeg reports whether any placed leg has already gone.
func (t *Trade) HasClosedLeg() bool {
	for _, l := range t.Legs {
		if l.Ticket != 0 && l.Closed {
			return true
		}
	}
	return false
}

// MarkTPHit records the hit time for every level up to and including level.
func (t *Trade) MarkTPHit(level int, at time.Time) {
	slots := []**time.Time{&t.TP1HitAt, &t.TP2HitAt, &t.TP3HitAt}
	for i := 0; i < level && i < len(slots); i++ {
		if *slots[i] == nil {
			ts := at
			*slots[i] = &ts
		}
	}
}

// Clone returns a deep copy that shares no memory with t.
func (t *Trade) Clone() *Trade {
	c := *t
	c.EntryMin = cloneFloat(t.EntryMin)
	c.EntryMax = cloneFloat(t.EntryMax)
	c.EntryPrice = cloneFloat(t.EntryPrice)
	c.StopLoss = cloneFloat(t.StopLoss)
	c.TakeProfit1 = cloneFloat(t.TakeProfit1)
	c.TakeProfit2 = cloneFloat(t.TakeProfit2)
	c.TakeProfit3 = cloneFloat(t.TakeProfit3)
	c.OpenedAt = cloneTime(t.OpenedAt)
	c.TP1HitAt = cloneTime(t.TP1HitAt)
	c.TP2HitAt = cloneTime(t.TP2HitAt)
	c.TP3HitAt = cloneTime(t.TP3HitAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.Legs = make([]Leg, len(t.Legs))
	for i, l := range t.Legs {
		l.TakeProfit = cloneFloat(l.TakeProfit)
		l.StopLoss = cloneFloat(l.StopLoss)
		l.PlacedAt = cloneTime(l.PlacedAt)
		l.ClosedAt = cloneTime(l.ClosedAt)
		c.Legs[i] = l
	}
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
