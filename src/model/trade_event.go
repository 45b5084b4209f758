package model

import "time"

type EventType string

const (
	EventTradeOpened       EventType = "trade_opened"
	EventTakeProfitHit     EventType = "take_profit_hit"
	EventBreakevenApplied  EventType = "breakeven_applied"
	EventStopLossHit       EventType = "stop_loss_hit"
	EventTradeClosed       EventType = "trade_closed"
	EventTradeRejected     EventType = "trade_rejected"
	EventTradeCancelled    EventType = "trade_cancelled"
	EventTradeFailed       EventType = "trade_failed"
	EventStopLossUpdated   EventType = "stop_loss_updated"
	EventTakeProfitUpdated EventType = "take_profit_updated"
)

// TradeEvent is a lifecycle notification, also kept as an audit row.
type TradeEvent struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	TradeID   string    `gorm:"size:36;index" json:"trade_id"`
	Type      EventType `gorm:"size:30;index" json:"type"`
	Symbol    string    `gorm:"size:30" json:"symbol"`
	Level     int       `json:"level,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
