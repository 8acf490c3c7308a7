package database

import (
	"fmt"
	"os"
	"path/filepath"

	"reaper-go/internal/config"
	"reaper-go/internal/reaper"
)

// FileName is the database file created under the storage data dir.
const FileName = "reaper.db"

// NewDatabaseFromConfig opens the SQLite database for a "sqlite" storage
// config. Other storage types have no database and are rejected.
func NewDatabaseFromConfig(cfg config.StorageConfig, logger reaper.Logger) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite storage")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName), logger)
	default:
		return nil, fmt.Errorf("storage type %q has no database", cfg.Type)
	}
}
