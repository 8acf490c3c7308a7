package hashcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"reaper-go/internal/hasher"
	"reaper-go/internal/testutil"
)

// countingHasher counts calls through to the real hasher.
type countingHasher struct {
	mu    sync.Mutex
	calls int
	inner *hasher.SHA256Hasher
}

func (h *countingHasher) Hash(ctx context.Context, path string) (string, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.inner.Hash(ctx, path)
}

func newTestCache(t *testing.T) (*CachingHasher, *countingHasher) {
	t.Helper()
	inner := &countingHasher{inner: hasher.NewSHA256Hasher()}
	c, err := Open(Config{InMemory: true}, inner)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, inner
}

func TestCachingHasher_Hash(t *testing.T) {
	ctx := context.Background()

	t.Run("second hash of unchanged file is served from cache", func(t *testing.T) {
		c, inner := newTestCache(t)
		path := testutil.WriteFile(t, t.TempDir(), "a.txt", "hello", time.Time{})

		first, err := c.Hash(ctx, path)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		second, err := c.Hash(ctx, path)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}

		if first != testutil.SHA256Hex([]byte("hello")) || second != first {
			t.Errorf("Hash() = %s then %s, want %s twice", first, second, testutil.SHA256Hex([]byte("hello")))
		}
		if inner.calls != 1 {
			t.Errorf("inner hasher called %d times, want 1", inner.calls)
		}
		if n, _ := c.Len(); n != 1 {
			t.Errorf("Len() = %d, want 1", n)
		}
	})

	t.Run("changed mtime invalidates the entry", func(t *testing.T) {
		c, inner := newTestCache(t)
		dir := t.TempDir()
		mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		path := testutil.WriteFile(t, dir, "a.txt", "v1", mtime)

		if _, err := c.Hash(ctx, path); err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		testutil.WriteFile(t, dir, "a.txt", "v2", mtime.Add(time.Hour))

		got, err := c.Hash(ctx, path)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if got != testutil.SHA256Hex([]byte("v2")) {
			t.Errorf("Hash() returned stale digest")
		}
		if inner.calls != 2 {
			t.Errorf("inner hasher called %d times, want 2", inner.calls)
		}
	})

	t.Run("forget drops the entry", func(t *testing.T) {
		c, inner := newTestCache(t)
		path := testutil.WriteFile(t, t.TempDir(), "a.txt", "x", time.Time{})

		c.Hash(ctx, path)
		if err := c.Forget(path); err != nil {
			t.Fatalf("Forget() error = %v", err)
		}
		c.Hash(ctx, path)
		if inner.calls != 2 {
			t.Errorf("inner hasher called %d times, want 2", inner.calls)
		}
	})

	t.Run("missing file is an error and not cached", func(t *testing.T) {
		c, _ := newTestCache(t)
		if _, err := c.Hash(ctx, "/no/such/file"); err == nil {
			t.Error("Hash() expected error for missing file")
		}
		if n, _ := c.Len(); n != 0 {
			t.Errorf("Len() = %d, want 0", n)
		}
	})
}

func TestCachingHasher_Fingerprint(t *testing.T) {
	t.Run("delegates to a fingerprinting hasher", func(t *testing.T) {
		c, err := Open(Config{InMemory: true}, hasher.NewSHA256Hasher())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer c.Close()

		path := testutil.WriteFile(t, t.TempDir(), "a.txt", "abc", time.Time{})
		if _, err := c.Fingerprint(context.Background(), path, 2); err != nil {
			t.Errorf("Fingerprint() error = %v", err)
		}
	})

	t.Run("fails when the wrapped hasher cannot fingerprint", func(t *testing.T) {
		c, _ := newTestCache(t)
		path := testutil.WriteFile(t, t.TempDir(), "a.txt", "abc", time.Time{})
		if _, err := c.Fingerprint(context.Background(), path, 2); err == nil {
			t.Error("Fingerprint() expected error")
		}
	})
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(Config{}, hasher.NewSHA256Hasher()); err == nil {
		t.Error("Open() expected error without dir")
	}
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, t.TempDir(), "a.txt", "persist", time.Time{})

	c, err := Open(Config{Dir: dir}, hasher.NewSHA256Hasher())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := c.Hash(context.Background(), path); err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	inner := &countingHasher{inner: hasher.NewSHA256Hasher()}
	reopened, err := Open(Config{Dir: dir}, inner)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Hash(context.Background(), path); err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("inner hasher called %d times after reopen, want 0", inner.calls)
	}
}
