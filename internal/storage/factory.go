package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fidde/codesnip/internal/storage/bolt"
	"github.com/fidde/codesnip/internal/storage/memory"
	"github.com/fidde/codesnip/internal/storage/sqlite"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite", "bolt" or "memory"
	Backend string

	SQLitePath string
	BoltPath   string

	// ViewFlushInterval bounds how long the sqlite backend batches view
	// counter increments.
	ViewFlushInterval time.Duration
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:           BackendSQLite,
		SQLitePath:        "./data/codesnip.db",
		BoltPath:          "./data/codesnip.bolt",
		ViewFlushInterval: 25 * time.Millisecond,
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(cfg Config, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMemory:
		logger.Info("using in-memory storage")
		return memory.New(), nil

	case BackendSQLite, "":
		logger.Info("using SQLite storage", "path", cfg.SQLitePath)
		sqlCfg := sqlite.DefaultConfig(cfg.SQLitePath)
		if cfg.ViewFlushInterval > 0 {
			sqlCfg.FlushInterval = cfg.ViewFlushInterval
		}
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		store, err := sqlite.New(sqlCfg)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case BackendBolt:
		logger.Info("using bbolt storage", "path", cfg.BoltPath)
		if err := ensureDir(cfg.BoltPath); err != nil {
			return nil, err
		}
		store, err := bolt.New(bolt.DefaultConfig(cfg.BoltPath))
		if err != nil {
			return nil, fmt.Errorf("creating bbolt store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, bolt, memory)", cfg.Backend)
	}
}

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
