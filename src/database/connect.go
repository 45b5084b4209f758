package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dialector picks the gorm driver for the configured backend.
func dialector(config Config, readOnly bool) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverSQLite, "":
		dsn := config.DatabasePath
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
		if readOnly && dsn != ":memory:" {
			dsn = "file:" + dsn + "?mode=ro"
		}
		return sqlite.Open(dsn), nil

	case DriverPostgres:
		dsn := config.DatabaseURLMain
		if readOnly && config.DatabaseURLReadOnly != "" {
			dsn = config.DatabaseURLReadOnly
		}
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_URL_MAIN is required for postgres")
		}
		return postgres.Open(dsn), nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Driver)
	}
}

// Open connects without running migrations.
func Open(config Config, readOnly bool) (*gorm.DB, error) {
	d, err := dialector(config, readOnly)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", config.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	if config.Driver == DriverPostgres {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	} else {
		// sqlite serializes writers
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
