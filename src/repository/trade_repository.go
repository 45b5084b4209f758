package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// TradeRepository handles read/write operations for trades and their legs.
type TradeRepository struct {
	db *gorm.DB
}

// TradeSearchOptions filters historical trades. Nil fields are ignored.
type TradeSearchOptions struct {
	Status        *model.TradeStatus
	Symbol        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Debug("Creating TradeRepository with custom DB instance")

	return &TradeRepository{db: db}
}

func withLegs(db *gorm.DB) *gorm.DB {
	return db.Order("level ASC")
}

// Save upserts the trade row and every leg in one transaction.
func (r *TradeRepository) Save(
	ctx context.Context,
	trade *model.Trade,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Save",
		"trade_id": trade.ID,
		"status":   trade.Status,
		"version":  trade.Version,
	}).Debug("Saving trade")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Omit("Legs").
			Create(trade).Error; err != nil {
			return err
		}
		if len(trade.Legs) == 0 {
			return nil
		}
		for i := range trade.Legs {
			trade.Legs[i].TradeID = trade.ID
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&trade.Legs).Error
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "Save",
			"trade_id": trade.ID,
		}).WithError(err).Error("Failed to save trade")

		return err
	}

	return nil
}

// FindByID fetches a trade with its legs.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByID(
	ctx context.Context,
	id string,
) (*model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "FindByID",
		"id":   id,
	}).Debug("Fetching trade by ID")

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Preload("Legs", withLegs).
		Where("id = ?", id).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "TradeRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}

// ListOpen returns every trade that is not retired, oldest first.
func (r *TradeRepository) ListOpen(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Preload("Legs", withLegs).
		Where("status NOT IN ?", model.TerminalStatuses).
		Order("created_at ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "ListOpen",
		}).WithError(err).Error("Failed to list open trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeRepository",
		"op":    "ListOpen",
		"count": len(trades),
	}).Debug("Open trades loaded")

	return trades, nil
}

// Search lists trades matching the options, newest first.
func (r *TradeRepository) Search(ctx context.Context, options TradeSearchOptions) ([]model.Trade, error) {
	q := r.db.WithContext(ctx).Model(&model.Trade{})

	if options.Status != nil {
		q = q.Where("status = ?", *options.Status)
	}
	if options.Symbol != nil {
		q = q.Where("symbol = ?", *options.Symbol)
	}
	if options.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		q = q.Where("created_at <= ?", *options.CreatedBefore)
	}

	q = q.Order("created_at DESC, id DESC")
	if options.Limit > 0 {
		q = q.Limit(options.Limit)
	}
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	var trades []model.Trade
	if err := q.Preload("Legs", withLegs).Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search trades")

		return nil, err
	}
	return trades, nil
}
