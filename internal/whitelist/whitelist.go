// Package whitelist persists the set of resurrected paths. Every path is
// stored and compared in NFC form.
package whitelist

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"reaper-go/internal/config"
	"reaper-go/internal/database"
	"reaper-go/internal/reaper"
)

// FileName is the JSON whitelist created under the storage data dir.
const FileName = "whitelist.json"

// NewWhitelistFromConfig creates a Whitelist for the storage type.
// db is required for sqlite storage and ignored otherwise.
func NewWhitelistFromConfig(cfg config.StorageConfig, db *database.SQLiteDatabase, clock reaper.Clock, logger reaper.Logger) (reaper.Whitelist, error) {
	switch cfg.Type {
	case "file":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for file storage")
		}
		return OpenFileWhitelist(filepath.Join(cfg.DataDir, FileName), logger)
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite storage requires an open database")
		}
		return NewSQLiteWhitelist(db, clock), nil
	case "memory":
		return NewMemoryWhitelist(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// MemoryWhitelist is an in-memory Whitelist. Safe for concurrent use.
type MemoryWhitelist struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

func NewMemoryWhitelist(paths ...string) *MemoryWhitelist {
	m := &MemoryWhitelist{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		m.paths[reaper.NormalizePath(p)] = struct{}{}
	}
	return m
}

func (m *MemoryWhitelist) Add(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[reaper.NormalizePath(path)] = struct{}{}
	return nil
}

func (m *MemoryWhitelist) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.paths, reaper.NormalizePath(path))
	return nil
}

func (m *MemoryWhitelist) Contains(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[reaper.NormalizePath(path)]
	return ok, nil
}

func (m *MemoryWhitelist) Paths() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.paths), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var _ reaper.Whitelist = (*MemoryWhitelist)(nil)
