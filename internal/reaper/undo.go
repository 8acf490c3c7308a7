package reaper

import (
	"context"
	"time"
)

// DefaultUndoWindow is how long a banish stays reversible through the undo queue.
const DefaultUndoWindow = 5 * time.Second

// BanishInfo describes a completed banish so it can be registered for undo.
type BanishInfo struct {
	FilePath        string
	GraveyardPath   string
	FileSize        int64
	Classifications ClassificationSet
}

// UndoEntry is a pending reversal. Callers only ever see copies.
type UndoEntry struct {
	ID            string
	Timestamp     time.Time
	Operation     Action
	FilePath      string
	GraveyardPath string
	ExpiresAt     time.Time
	FileSize      int64
	FileName      string
}

// Expired reports whether the entry can no longer be executed at now.
func (e UndoEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// UndoQueue holds recent reversible operations for a short window.
type UndoQueue interface {
	Register(info BanishInfo) UndoEntry
	// Execute reverses the entry and returns the restored path.
	Execute(ctx context.Context, id string) (string, error)
	Active() []UndoEntry
	// Clear drops an entry without restoring its file.
	Clear(id string) error
	// ClearAll drops every entry and returns how many there were.
	ClearAll() int
}
