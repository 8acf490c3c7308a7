package oplog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"reaper-go/internal/database"
	"reaper-go/internal/reaper"
)

// SQLiteLog stores entries in the operations table. Timestamps are kept as
// unix nanoseconds.
type SQLiteLog struct {
	db        *sql.DB
	recovered bool
}

// NewSQLiteLog uses an already migrated database. The caller owns db and
// closes it.
func NewSQLiteLog(db *database.SQLiteDatabase) *SQLiteLog {
	return &SQLiteLog{db: db.DB(), recovered: db.Recovered()}
}

func (l *SQLiteLog) Append(entry reaper.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}
	_, err := l.db.Exec(`INSERT INTO operations
		(timestamp, action, file_path, original_path, graveyard_path, classifications, file_size, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UnixNano(),
		string(entry.Action),
		entry.FilePath,
		entry.OriginalPath,
		entry.GraveyardPath,
		entry.Classifications.String(),
		entry.FileSize,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting operation: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Query(filter reaper.LogFilter) ([]reaper.LogEntry, error) {
	var where []string
	var args []any
	if filter.Action != nil {
		where = append(where, "action = ?")
		args = append(args, string(*filter.Action))
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Until != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.Until.UnixNano())
	}

	q := `SELECT timestamp, action, file_path, original_path, graveyard_path, classifications, file_size, error
		FROM operations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC"

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var out []reaper.LogEntry
	for rows.Next() {
		var (
			e      reaper.LogEntry
			ts     int64
			action string
			labels string
		)
		if err := rows.Scan(&ts, &action, &e.FilePath, &e.OriginalPath, &e.GraveyardPath, &labels, &e.FileSize, &e.Error); err != nil {
			return nil, fmt.Errorf("reading operation: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Action = reaper.Action(action)
		if e.Classifications, err = reaper.ParseClassificationSet(labels); err != nil {
			return nil, reaper.E(reaper.KindCorrupt, "query log", e.FilePath, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return out, nil
}

func (l *SQLiteLog) Recovered() bool {
	return l.recovered
}

// Close is a no-op; the database is shared and closed by its owner.
func (l *SQLiteLog) Close() error {
	return nil
}

var _ reaper.OperationLog = (*SQLiteLog)(nil)
