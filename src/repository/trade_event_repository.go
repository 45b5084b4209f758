package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// TradeEventRepository is the audit sink for lifecycle events.
type TradeEventRepository struct {
	db *gorm.DB
}

func NewTradeEventRepository() *TradeEventRepository {
	return &TradeEventRepository{
		db: database.MainDB,
	}
}

func (r *TradeEventRepository) WithDB(db *gorm.DB) *TradeEventRepository {
	return &TradeEventRepository{db: db}
}

func (r *TradeEventRepository) Create(ctx context.Context, ev *model.TradeEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "TradeEventRepository",
		"op":       "Create",
		"trade_id": ev.TradeID,
		"event":    ev.Type,
	}).Debug("Storing trade event")

	return r.db.WithContext(ctx).Create(ev).Error
}

// FindByTradeID returns a trade's events in the order they happened.
// Event ids sort by creation time.
func (r *TradeEventRepository) FindByTradeID(ctx context.Context, tradeID string) ([]model.TradeEvent, error) {
	var out []model.TradeEvent
	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
