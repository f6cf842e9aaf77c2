package storage

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/verdra/garden-gateway/internal/model/entities"
)

// DatabaseConfig holds the relational store configuration. Driver is
// "postgres" or "sqlite"; sqlite is what tests and single-node setups
// use.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Open connects to the database and runs migrations.
func Open(cfg *DatabaseConfig) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dial = postgres.Open(cfg.DSN)
	case "sqlite":
		dial = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("storage: running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the gateway tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.Device{},
		&entities.Plant{},
		&entities.Garden{},
		&entities.Schedule{},
		&entities.IrrigationRun{},
		&entities.IrrigationLog{},
	)
}
