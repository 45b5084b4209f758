package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database/migrations"
	"signalbridge/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB opens the main database and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := Open(config, false)
	if err != nil {
		return err
	}

	if err := Migrate(db); err != nil {
		return err
	}

	// Assign to the global variable only after a successful migration.
	MainDB = db

	logrus.WithFields(map[string]interface{}{
		"driver": config.Driver,
	}).Info("[database] MainDB connection established")
	return nil
}

// Migrate creates or updates the schema, then runs data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Trade{},
		&model.Leg{},
		&model.SignalLog{},
		&model.TradeEvent{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
