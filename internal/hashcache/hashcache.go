// Package hashcache persists content digests between runs so unchanged files
// are not re-read. An entry is trusted only while the file's size, mtime and
// inode still match what was recorded.
package hashcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"reaper-go/internal/fs"
	"reaper-go/internal/reaper"
)

const keyPrefix = "sha256:"

// Config holds configuration for the cache database.
type Config struct {
	// Dir is the directory for badger files. Ignored when InMemory is true.
	Dir string

	// InMemory keeps the cache in RAM only. Useful for testing.
	InMemory bool

	Logger reaper.Logger
}

type entry struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
	Inode   uint64 `json:"ino,omitempty"`
	Digest  string `json:"digest"`
}

// CachingHasher wraps a Hasher with a badger-backed digest cache.
type CachingHasher struct {
	inner  reaper.Hasher
	db     *badger.DB
	logger reaper.Logger
}

// badgerLogger adapts reaper.Logger to badger's logger interface.
type badgerLogger struct {
	logger reaper.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens (creating if needed) the cache and wraps inner with it.
// The caller must call Close.
func Open(cfg Config, inner reaper.Hasher) (*CachingHasher, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("dir is required for a persistent hash cache")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = reaper.NewNopLogger()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("creating hash cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening hash cache: %w", err)
	}

	return &CachingHasher{inner: inner, db: db, logger: logger}, nil
}

// Hash returns the cached digest when the file is unchanged, otherwise
// delegates to the wrapped hasher and records the result. Cache failures are
// logged and never fail the hash.
func (c *CachingHasher) Hash(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", reaper.OSError("hash", path, err)
	}

	want := entry{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
	if _, ino, ok := fs.FileIdentity(info); ok {
		want.Inode = ino
	}

	if cached, ok := c.lookup(path); ok &&
		cached.Size == want.Size && cached.ModTime == want.ModTime && cached.Inode == want.Inode {
		return cached.Digest, nil
	}

	digest, err := c.inner.Hash(ctx, path)
	if err != nil {
		return "", err
	}

	want.Digest = digest
	if err := c.store(path, want); err != nil {
		c.logger.Warn("hash cache write failed", "path", path, "error", err)
	}
	return digest, nil
}

// Fingerprint delegates to the wrapped hasher.
func (c *CachingHasher) Fingerprint(ctx context.Context, path string, n int64) (uint64, error) {
	fp, ok := c.inner.(reaper.Fingerprinter)
	if !ok {
		return 0, errors.New("wrapped hasher cannot fingerprint")
	}
	return fp.Fingerprint(ctx, path, n)
}

// Forget drops any cached digest for path.
func (c *CachingHasher) Forget(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + path))
	})
}

// Len returns the number of cached digests.
func (c *CachingHasher) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (c *CachingHasher) Close() error {
	return c.db.Close()
}

func (c *CachingHasher) lookup(path string) (entry, bool) {
	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Debug("hash cache read failed", "path", path, "error", err)
		}
		return entry{}, false
	}
	return e, true
}

func (c *CachingHasher) store(path string, e entry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+path), val)
	})
}

var (
	_ reaper.Hasher        = (*CachingHasher)(nil)
	_ reaper.Fingerprinter = (*CachingHasher)(nil)
)
