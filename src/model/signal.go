package model

import (
	"strings"
	"time"
)

// Intent is the purpose of a channel message.
type Intent string

const (
	IntentNewTrade         Intent = "new_trade"
	IntentUpdateStopLoss   Intent = "update_stop_loss"
	IntentUpdateTakeProfit Intent = "update_take_profit"
	IntentCloseTrade       Intent = "close_trade"
	IntentBreakeven        Intent = "breakeven"
	IntentTakeProfitHit    Intent = "take_profit_hit"
	IntentStopLossHit      Intent = "stop_loss_hit"
	IntentUnrecognized     Intent = "unrecognized"
)

// Direction is the trade side.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the other side, used when closing.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Signal is the interpreted form of one channel message.
// A Signal is produced once by the interpreter and never mutated afterwards.
type Signal struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	ReceivedAt time.Time `json:"received_at"`
	RawText    string    `json:"raw_text"`

	Intent Intent `json:"intent"`

	// TPLevel is the level reported by a TakeProfitHit, or the target level
	// of an UpdateTakeProfit (0 means TakeProfits are given in level order).
	TPLevel int `json:"tp_level,omitempty"`
	// Cancel marks a CloseTrade that came from a cancel/delete marker.
	Cancel bool `json:"cancel,omitempty"`

	Symbol      string    `json:"symbol,omitempty"`
	Direction   Direction `json:"direction,omitempty"`
	EntryMin    *float64  `json:"entry_min,omitempty"`
	EntryMax    *float64  `json:"entry_max,omitempty"`
	StopLoss    *float64  `json:"stop_loss,omitempty"`
	TakeProfits []float64 `json:"take_profits,omitempty"`
	LotSize     *float64  `json:"lot_size,omitempty"`

	Parsed      bool     `json:"parsed"`
	ParseErrors []string `json:"parse_errors,omitempty"`
}

// IsMarket reports whether the signal carries no entry band.
func (s Signal) IsMarket() bool {
	return s.EntryMin == nil || s.EntryMax == nil
}

// TakeProfit returns the 1-based target level, if present.
func (s Signal) TakeProfit(level int) (float64, bool) {
	if level < 1 || level > len(s.TakeProfits) {
		return 0, false
	}
	return s.TakeProfits[level-1], true
}

// SourceKey identifies the originating channel message.
func (s Signal) SourceKey() string {
	return s.ChannelID + "/" + s.MessageID
}

// SignalLog is the audit row written for every interpreted message.
type SignalLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SignalID    string    `gorm:"size:36;uniqueIndex" json:"signal_id"`
	ChannelID   string    `gorm:"size:100;index:idx_signal_logs_source" json:"channel_id"`
	MessageID   string    `gorm:"size:100;index:idx_signal_logs_source" json:"message_id"`
	Intent      Intent    `gorm:"size:30;index" json:"intent"`
	Symbol      string    `gorm:"size:30" json:"symbol"`
	Direction   Direction `gorm:"size:10" json:"direction"`
	Parsed      bool      `json:"parsed"`
	ParseErrors string    `gorm:"type:text" json:"parse_errors"`
	RawText     string    `gorm:"type:text" json:"raw_text"`
	ReceivedAt  time.Time `gorm:"index" json:"received_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSignalLog builds the audit row for a signal.
func NewSignalLog(s Signal) *SignalLog {
	return &SignalLog{
		SignalID:    s.ID,
		ChannelID:   s.ChannelID,
		MessageID:   s.MessageID,
		Intent:      s.Intent,
		Symbol:      s.Symbol,
		Direction:   s.Direction,
		Parsed:      s.Parsed,
		ParseErrors: strings.Join(s.ParseErrors, "; "),
		RawText:     s.RawText,
		ReceivedAt:  s.ReceivedAt,
	}
}
