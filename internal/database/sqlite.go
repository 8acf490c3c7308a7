package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	sqlite3 "github.com/mattn/go-sqlite3"

	"reaper-go/internal/database/migrations"
	"reaper-go/internal/reaper"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase is a migrated SQLite connection shared by the sqlite
// operation log and whitelist stores.
type SQLiteDatabase struct {
	db        *sql.DB
	path      string
	recovered bool
}

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. An unreadable database file is moved aside to path+".corrupt"
// and replaced with a fresh one; Recovered reports when that happened.
func NewSQLiteDatabase(path string, logger reaper.Logger) (*SQLiteDatabase, error) {
	if logger == nil {
		logger = reaper.NewNopLogger()
	}

	db, err := openAndProbe(path)
	recovered := false
	if err != nil {
		if !IsCorrupt(err) || path == MemoryPath {
			return nil, err
		}
		aside, moveErr := moveAside(path)
		if moveErr != nil {
			return nil, fmt.Errorf("replacing corrupt database %s: %w", path, moveErr)
		}
		logger.Warn("database unreadable, starting a fresh one", "path", path, "moved_to", aside, "error", err)

		if db, err = openAndProbe(path); err != nil {
			return nil, err
		}
		recovered = true
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	return &SQLiteDatabase{db: db, path: path, recovered: recovered}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// IsCorrupt reports whether err is SQLite refusing to read the file
// (SQLITE_NOTADB or SQLITE_CORRUPT).
func IsCorrupt(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
}

// openAndProbe opens path and reads its header so that a damaged file fails
// here rather than on the first query.
func openAndProbe(path string) (*sql.DB, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	var version int
	if err := db.QueryRow("PRAGMA schema_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading database %s: %w", path, err)
	}
	return db, nil
}

func moveAside(path string) (string, error) {
	aside := path + ".corrupt"
	if err := os.Rename(path, aside); err != nil {
		return "", err
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return aside, nil
}

// DB returns the underlying connection pool.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Recovered reports whether a corrupt database was replaced on open.
func (s *SQLiteDatabase) Recovered() bool {
	return s.recovered
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
