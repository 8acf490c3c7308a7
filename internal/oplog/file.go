package oplog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"reaper-go/internal/fs"
	"reaper-go/internal/reaper"
)

const formatVersion = 1

type document struct {
	Version    int               `json:"version"`
	Operations []reaper.LogEntry `json:"operations"`
}

// FileLog stores the whole log as one JSON document and rewrites it on every
// append.
type FileLog struct {
	mu        sync.Mutex
	path      string
	entries   []reaper.LogEntry
	recovered bool
}

// OpenFileLog loads the log at path. A missing file is an empty log. A file
// that cannot be parsed is moved to path+".corrupt" and replaced with an
// empty log; Recovered then reports true.
func OpenFileLog(path string, logger reaper.Logger) (*FileLog, error) {
	if logger == nil {
		logger = reaper.NewNopLogger()
	}
	l := &FileLog{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, reaper.OSError("open log", path, err)
	}

	entries, parseErr := decode(data)
	if parseErr == nil {
		l.entries = entries
		return l, nil
	}

	aside := path + ".corrupt"
	if err := os.Rename(path, aside); err != nil {
		return nil, reaper.OSError("replace corrupt log", path, err)
	}
	if err := l.persist(nil); err != nil {
		return nil, err
	}
	l.recovered = true
	logger.Warn("operation log unreadable, started a new one", "path", path, "moved_to", aside, "error", parseErr)
	return l, nil
}

func decode(data []byte) ([]reaper.LogEntry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, reaper.E(reaper.KindCorrupt, "decode log", "", err)
	}
	if doc.Version != formatVersion {
		return nil, reaper.E(reaper.KindCorrupt, "decode log", "", fmt.Errorf("unsupported version %d", doc.Version))
	}
	return doc.Operations, nil
}

// Append re-reads the document under the lock file before rewriting it, so
// entries appended by another process are kept.
func (l *FileLog) Append(entry reaper.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	unlock, err := fs.LockFile(l.path)
	if err != nil {
		return reaper.OSError("lock log", l.path, err)
	}
	defer unlock()

	current, err := l.load()
	if err != nil {
		return err
	}
	next := append(current[:len(current):len(current)], entry)
	if err := l.persist(next); err != nil {
		return err
	}
	l.entries = next
	return nil
}

// Query reads the document again so appends from other processes show up.
// When the file cannot be read the last known entries are used.
func (l *FileLog) Query(filter reaper.LogFilter) ([]reaper.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, err := l.load(); err == nil {
		l.entries = current
	}
	return query(l.entries, filter), nil
}

func (l *FileLog) load() ([]reaper.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, reaper.OSError("read log", l.path, err)
	}
	return decode(data)
}

func (l *FileLog) Recovered() bool {
	return l.recovered
}

func (l *FileLog) Close() error {
	return nil
}

// Path returns the JSON document location.
func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) persist(entries []reaper.LogEntry) error {
	if entries == nil {
		entries = []reaper.LogEntry{}
	}
	data, err := json.MarshalIndent(document{Version: formatVersion, Operations: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding operation log: %w", err)
	}
	if err := fs.WriteFileAtomic(l.path, data, 0600); err != nil {
		return fmt.Errorf("writing operation log %s: %w", l.path, err)
	}
	return nil
}

var _ reaper.OperationLog = (*FileLog)(nil)
