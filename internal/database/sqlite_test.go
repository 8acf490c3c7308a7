package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func TestNewSQLiteDatabase(t *testing.T) {
	t.Run("in-memory database is migrated", func(t *testing.T) {
		db, err := NewSQLiteDatabase(MemoryPath, nil)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
		if db.Recovered() {
			t.Error("Recovered() = true for a fresh database")
		}
	})

	t.Run("reopening keeps data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)

		db, err := NewSQLiteDatabase(path, nil)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		if _, err := db.DB().Exec("INSERT INTO whitelist (path, added_at) VALUES ('/keep', 1)"); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		db.Close()

		db, err = NewSQLiteDatabase(path, nil)
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer db.Close()

		var n int
		if err := db.DB().QueryRow("SELECT COUNT(*) FROM whitelist").Scan(&n); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("whitelist rows = %d, want 1", n)
		}
	})

	t.Run("corrupt file is moved aside and replaced", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		garbage := []byte(strings.Repeat("not a database. ", 256))
		if err := os.WriteFile(path, garbage, 0600); err != nil {
			t.Fatal(err)
		}

		db, err := NewSQLiteDatabase(path, nil)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		defer db.Close()

		if !db.Recovered() {
			t.Error("Recovered() = false, want true")
		}
		aside, err := os.ReadFile(path + ".corrupt")
		if err != nil {
			t.Fatalf("corrupt file not preserved: %v", err)
		}
		if string(aside) != string(garbage) {
			t.Error("preserved file differs from the original")
		}
		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}

func TestIsCorrupt(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not a database", sqlite3.Error{Code: sqlite3.ErrNotADB}, true},
		{"corrupt", sqlite3.Error{Code: sqlite3.ErrCorrupt}, true},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false},
		{"other error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrupt(tt.err); got != tt.want {
				t.Errorf("IsCorrupt(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
