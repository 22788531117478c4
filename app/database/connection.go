package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"StockLedger/app/config"
	"StockLedger/app/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the database instance (useful for testing)
func SetDB(d *gorm.DB) {
	db = d
}

// Initialize opens the configured database and runs migrations.
func Initialize(cfg *config.AppConfig) error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		conn *gorm.DB
		err  error
	)
	switch cfg.Database.Driver {
	case "", "sqlite":
		path := cfg.Database.Path
		if path == "" {
			path = "./data/stockledger.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		conn, err = gorm.Open(sqlite.Open(path), gormConfig)
	case "postgres":
		conn, err = gorm.Open(postgres.Open(cfg.Database.PostgresDSN()), gormConfig)
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db = conn
	return Migrate(db)
}

// Migrate creates or updates the engine's tables.
func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(
		&models.Product{},
		&models.LedgerEntry{},
		&models.Reservation{},
		&models.ReorderCycle{},
		&models.ReorderItem{},
		&models.ReorderSnapshot{},
	)
}
