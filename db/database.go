package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// History is the sqlite log of download attempts.
type History struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at dbPath and migrates
// the schema. GORM warnings go to log.
func Open(dbPath string, log *zap.Logger) (*History, error) {
	if log == nil {
		log = zap.NewNop()
	}

	stdLog, err := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to bridge gorm logger: %w", err)
	}

	// Configure GORM logger
	newLogger := gormlogger.New(
		stdLog,
		gormlogger.Config{
			SlowThreshold:             time.Second,     // Slow SQL threshold
			LogLevel:                  gormlogger.Warn, // Log level (Warn, Error, Info)
			IgnoreRecordNotFoundError: true,            // Ignore ErrRecordNotFound error
			ParameterizedQueries:      true,            // Keep values out of the log
			Colorful:                  false,           // Log file, no escape codes
		},
	)

	gdb, err := gorm.Open(gormlite.Open(dbPath), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// sqlite allows a single writer
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&Attempt{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return &History{db: gdb}, nil
}

// Record inserts one attempt.
func (h *History) Record(ctx context.Context, attempt Attempt) error {
	if err := h.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("recording attempt for mod %d: %w", attempt.ModID, err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	var attempts []Attempt
	q := h.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("loading recent attempts: %w", err)
	}
	return attempts, nil
}

// ForRun returns the attempts of one batch run in the order they finished.
func (h *History) ForRun(ctx context.Context, runID string) ([]Attempt, error) {
	var attempts []Attempt
	if err := h.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("loading attempts of run %s: %w", runID, err)
	}
	return attempts, nil
}

func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
