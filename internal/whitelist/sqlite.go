package whitelist

import (
	"database/sql"
	"fmt"

	"reaper-go/internal/database"
	"reaper-go/internal/reaper"
)

// SQLiteWhitelist stores paths in the whitelist table.
type SQLiteWhitelist struct {
	db    *sql.DB
	clock reaper.Clock
}

// NewSQLiteWhitelist uses an already migrated database owned by the caller.
func NewSQLiteWhitelist(db *database.SQLiteDatabase, clock reaper.Clock) *SQLiteWhitelist {
	if clock == nil {
		clock = reaper.RealClock{}
	}
	return &SQLiteWhitelist{db: db.DB(), clock: clock}
}

func (w *SQLiteWhitelist) Add(path string) error {
	_, err := w.db.Exec("INSERT OR IGNORE INTO whitelist (path, added_at) VALUES (?, ?)",
		reaper.NormalizePath(path), w.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("adding whitelist path: %w", err)
	}
	return nil
}

func (w *SQLiteWhitelist) Remove(path string) error {
	if _, err := w.db.Exec("DELETE FROM whitelist WHERE path = ?", reaper.NormalizePath(path)); err != nil {
		return fmt.Errorf("removing whitelist path: %w", err)
	}
	return nil
}

func (w *SQLiteWhitelist) Contains(path string) (bool, error) {
	var n int
	err := w.db.QueryRow("SELECT COUNT(*) FROM whitelist WHERE path = ?", reaper.NormalizePath(path)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking whitelist: %w", err)
	}
	return n > 0, nil
}

func (w *SQLiteWhitelist) Paths() ([]string, error) {
	rows, err := w.db.Query("SELECT path FROM whitelist ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing whitelist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("reading whitelist path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ reaper.Whitelist = (*SQLiteWhitelist)(nil)
