package oplog

import (
	"sync"

	"reaper-go/internal/reaper"
)

// MemoryLog is an in-memory OperationLog. This implementation is safe for
// concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	entries []reaper.LogEntry

	// FailAppend, when set, is returned by Append instead of storing.
	FailAppend error
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(entry reaper.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return m.FailAppend
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryLog) Query(filter reaper.LogFilter) ([]reaper.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return query(m.entries, filter), nil
}

func (m *MemoryLog) Recovered() bool { return false }

func (m *MemoryLog) Close() error { return nil }

var _ reaper.OperationLog = (*MemoryLog)(nil)
