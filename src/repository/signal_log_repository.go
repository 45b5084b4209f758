package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// SignalLogRepository stores one audit row per interpreted message.
type SignalLogRepository struct {
	db *gorm.DB
}

func NewSignalLogRepository() *SignalLogRepository {
	return &SignalLogRepository{
		db: database.MainDB,
	}
}

func (r *SignalLogRepository) WithDB(db *gorm.DB) *SignalLogRepository {
	return &SignalLogRepository{db: db}
}

func (r *SignalLogRepository) Create(ctx context.Context, entry *model.SignalLog) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "SignalLogRepository",
			"op":         "Create",
			"signal_id":  entry.SignalID,
			"channel_id": entry.ChannelID,
		}).WithError(err).Error("Failed to store signal log")
	}
	return err
}

// FindRecent returns the latest interpreted messages, newest first.
func (r *SignalLogRepository) FindRecent(ctx context.Context, limit int) ([]model.SignalLog, error) {
	var out []model.SignalLog
	q := r.db.WithContext(ctx).Order("received_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
