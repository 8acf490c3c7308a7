package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates root/rel with content, creating parent directories, and
// sets its modification time when mtime is non-zero. Returns the absolute path.
func WriteFile(t *testing.T, root, rel, content string, mtime time.Time) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("setting mtime of %s: %v", rel, err)
		}
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// AssertMissing fails the test if path exists.
func AssertMissing(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Lstat(path); err == nil {
		t.Errorf("%s exists, want missing", path)
	} else if !os.IsNotExist(err) {
		t.Errorf("stat %s: %v", path, err)
	}
}
