// Package undo keeps recently banished files reversible for a short window.
package undo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"reaper-go/internal/reaper"
)

// DefaultSweepInterval is how often expired entries are dropped.
const DefaultSweepInterval = time.Second

type Options struct {
	Window        time.Duration
	SweepInterval time.Duration
	Clock         reaper.Clock
	IDs           reaper.IDGenerator
	Logger        reaper.Logger
}

// Queue is the in-memory UndoQueue. Entries live only for the lifetime of
// the process.
type Queue struct {
	graveyard reaper.Graveyard
	oplog     reaper.OperationLog
	window    time.Duration
	interval  time.Duration
	clock     reaper.Clock
	ids       reaper.IDGenerator
	logger    reaper.Logger

	mu      sync.Mutex
	entries map[string]reaper.UndoEntry

	loopMu  sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func New(graveyard reaper.Graveyard, oplog reaper.OperationLog, opts Options) *Queue {
	q := &Queue{
		graveyard: graveyard,
		oplog:     oplog,
		window:    opts.Window,
		interval:  opts.SweepInterval,
		clock:     opts.Clock,
		ids:       opts.IDs,
		logger:    opts.Logger,
		entries:   make(map[string]reaper.UndoEntry),
	}
	if q.window <= 0 {
		q.window = reaper.DefaultUndoWindow
	}
	if q.interval <= 0 {
		q.interval = DefaultSweepInterval
	}
	if q.clock == nil {
		q.clock = reaper.RealClock{}
	}
	if q.ids == nil {
		q.ids = reaper.UUIDGenerator{}
	}
	if q.logger == nil {
		q.logger = reaper.NewNopLogger()
	}
	return q
}

// Register records a completed banish and returns a copy of the new entry.
func (q *Queue) Register(info reaper.BanishInfo) reaper.UndoEntry {
	now := q.clock.Now()
	e := reaper.UndoEntry{
		ID:            q.ids.New(),
		Timestamp:     now,
		Operation:     reaper.ActionBanish,
		FilePath:      info.FilePath,
		GraveyardPath: info.GraveyardPath,
		ExpiresAt:     now.Add(q.window),
		FileSize:      info.FileSize,
		FileName:      filepath.Base(info.FilePath),
	}

	q.mu.Lock()
	q.entries[e.ID] = e
	q.mu.Unlock()
	return e
}

// Execute moves the banished file back and records the restore. Only one
// caller can claim an entry; the rest get NotFound. A failed restore leaves
// the entry in place while its window is still open.
func (q *Queue) Execute(ctx context.Context, id string) (string, error) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return "", reaper.E(reaper.KindNotFound, "undo", id, errors.New("no pending undo with this id"))
	}
	delete(q.entries, id)
	q.mu.Unlock()

	if e.Expired(q.clock.Now()) {
		return "", reaper.E(reaper.KindExpired, "undo", e.FilePath,
			fmt.Errorf("undo window closed at %s", e.ExpiresAt.Format(time.RFC3339)))
	}

	restored, err := q.graveyard.Restore(ctx, e.GraveyardPath, e.FilePath)
	if err != nil {
		if !e.Expired(q.clock.Now()) {
			q.mu.Lock()
			q.entries[id] = e
			q.mu.Unlock()
		}
		return "", err
	}

	entry := reaper.LogEntry{
		Timestamp:     q.clock.Now(),
		Action:        reaper.ActionRestore,
		FilePath:      restored,
		OriginalPath:  e.FilePath,
		GraveyardPath: e.GraveyardPath,
		FileSize:      e.FileSize,
	}
	if err := q.oplog.Append(entry); err != nil {
		return "", fmt.Errorf("recording undo of %s: %w", restored, err)
	}
	return restored, nil
}

// Active returns unexpired entries, oldest first.
func (q *Queue) Active() []reaper.UndoEntry {
	now := q.clock.Now()

	q.mu.Lock()
	out := make([]reaper.UndoEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clear drops the entry so it can no longer be executed. The file stays in
// the graveyard.
func (q *Queue) Clear(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; !ok {
		return reaper.E(reaper.KindNotFound, "clear undo", id, errors.New("no pending undo with this id"))
	}
	delete(q.entries, id)
	return nil
}

func (q *Queue) ClearAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	q.entries = make(map[string]reaper.UndoEntry)
	return n
}

// Sweep drops expired entries and returns how many were removed.
func (q *Queue) Sweep() int {
	now := q.clock.Now()

	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, e := range q.entries {
		if e.Expired(now) {
			delete(q.entries, id)
			n++
		}
	}
	return n
}

// Start runs Sweep every SweepInterval until Stop is called or ctx is done.
func (q *Queue) Start(ctx context.Context) error {
	q.loopMu.Lock()
	defer q.loopMu.Unlock()
	if q.running {
		return fmt.Errorf("undo sweeper is already running")
	}
	q.running = true
	q.done = make(chan struct{})

	q.wg.Add(1)
	go q.runLoop(ctx, q.done)
	return nil
}

// Stop ends the sweep loop and waits for it to exit. Stopping a queue that
// is not running is a no-op.
func (q *Queue) Stop() {
	q.loopMu.Lock()
	if !q.running {
		q.loopMu.Unlock()
		return
	}
	close(q.done)
	q.running = false
	q.loopMu.Unlock()

	q.wg.Wait()
}

func (q *Queue) runLoop(ctx context.Context, done <-chan struct{}) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if n := q.Sweep(); n > 0 {
				q.logger.Debug("expired undo entries dropped", "count", n)
			}
		}
	}
}

var _ reaper.UndoQueue = (*Queue)(nil)
