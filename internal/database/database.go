package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agencydesk/internal/config"
	"agencydesk/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DB struct {
	*gorm.DB
	sqlDB *sql.DB
	log   *logrus.Logger
}

func New(cfg *config.DatabaseConfig, log *logrus.Logger) (*DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"max_open": cfg.MaxOpenConns,
		"max_idle": cfg.MaxIdleConns,
	}).Info("database connected")

	return &DB{DB: db, sqlDB: sqlDB, log: log}, nil
}

func (db *DB) Migrate() error {
	db.log.Info("running database migrations")

	// SQLite needs WAL mode and a busy timeout to behave under the
	// connection pool; both are no-ops elsewhere.
	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			db.log.Warnf("failed to set WAL mode: %v", err)
		}
		if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			db.log.Warnf("failed to set busy timeout: %v", err)
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Project{},
		&models.Milestone{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Payment{},
		&models.InvoiceSequence{},
		&models.CompanySettings{},
		&models.FileObject{},
		&models.RefreshToken{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	// Seed the invoice counter so the first increment yields 1
	var seq models.InvoiceSequence
	if err := db.First(&seq, "id = ?", 1).Error; err != nil {
		if err := db.Create(&models.InvoiceSequence{ID: 1, NextValue: 0}).Error; err != nil {
			return fmt.Errorf("failed to seed invoice sequence: %w", err)
		}
	}

	db.log.Info("migrations completed")
	return nil
}

// Ping checks database connectivity
func (db *DB) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.sqlDB.Stats()
}

// Close closes database connections gracefully
func (db *DB) Close() error {
	if db.sqlDB != nil {
		db.sqlDB.SetMaxOpenConns(0)
		db.sqlDB.SetMaxIdleConns(0)

		return db.sqlDB.Close()
	}
	return nil
}
