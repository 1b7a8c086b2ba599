package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/models"
)

type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&models.ExportRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLStoreFromDB wraps an opened gorm handle without migrating
func NewMySQLStoreFromDB(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) GetDB() *gorm.DB {
	return s.db
}

// ExportLedger records exports. It stores metadata only, never card content.
type ExportLedger struct {
	store *MySQLStore
}

func NewExportLedger(store *MySQLStore) *ExportLedger {
	return &ExportLedger{store: store}
}

// Record inserts one export record
func (l *ExportLedger) Record(ctx context.Context, rec *models.ExportRecord) error {
	if err := l.store.GetDB().WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// Recent lists the newest exports of a session
func (l *ExportLedger) Recent(ctx context.Context, sessionID string, limit int) ([]models.ExportRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var records []models.ExportRecord
	if err := recentQuery(l.store.GetDB().WithContext(ctx), sessionID, limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return records, nil
}

func recentQuery(tx *gorm.DB, sessionID string, limit int) *gorm.DB {
	return tx.Model(&models.ExportRecord{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit)
}
