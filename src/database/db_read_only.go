package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/model"
)

// ReadOnlyDB is used by inspection commands that must never write.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB opens a read-only connection and checks that the trades
// table is reachable. It does not run any migrations.
func InitReadOnlyDB() error {
	config := GetConfig()
	db, err := Open(config, true)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.Trade{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access trades: %w", err)
	}

	logrus.WithFields(map[string]interface{}{
		"driver": config.Driver,
		"trades": count,
	}).Info("[ReadOnlyDB] trades reachable")

	ReadOnlyDB = db
	return nil
}
