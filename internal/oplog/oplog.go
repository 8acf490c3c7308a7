// Package oplog implements reaper.OperationLog backends: a JSON document on
// disk, the sqlite operations table, and an in-memory list for tests.
package oplog

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"reaper-go/internal/config"
	"reaper-go/internal/database"
	"reaper-go/internal/reaper"
)

// FileName is the JSON log created under the storage data dir.
const FileName = "operations.json"

// NewOperationLogFromConfig creates an OperationLog for the storage type.
// db is required for sqlite storage and ignored otherwise.
func NewOperationLogFromConfig(cfg config.StorageConfig, db *database.SQLiteDatabase, logger reaper.Logger) (reaper.OperationLog, error) {
	switch cfg.Type {
	case "file":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for file storage")
		}
		return OpenFileLog(filepath.Join(cfg.DataDir, FileName), logger)
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite storage requires an open database")
		}
		return NewSQLiteLog(db), nil
	case "memory":
		return NewMemoryLog(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func validate(e reaper.LogEntry) error {
	if _, err := reaper.ParseAction(string(e.Action)); err != nil {
		return reaper.E(reaper.KindInvalid, "append", e.FilePath, err)
	}
	if e.FilePath == "" {
		return reaper.E(reaper.KindInvalid, "append", "", errors.New("entry has no file path"))
	}
	if e.Timestamp.IsZero() {
		return reaper.E(reaper.KindInvalid, "append", e.FilePath, errors.New("entry has no timestamp"))
	}
	return nil
}

// query returns the entries matching filter, newest first. entries must be
// in append order; equal timestamps keep the later append first.
func query(entries []reaper.LogEntry, filter reaper.LogFilter) []reaper.LogEntry {
	out := make([]reaper.LogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if filter.Match(entries[i]) {
			out = append(out, entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
