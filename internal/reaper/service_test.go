package reaper_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reaper-go/internal/classify"
	"reaper-go/internal/graveyard"
	"reaper-go/internal/hasher"
	"reaper-go/internal/oplog"
	"reaper-go/internal/reaper"
	"reaper-go/internal/scanner"
	"reaper-go/internal/testutil"
	"reaper-go/internal/undo"
	"reaper-go/internal/whitelist"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) add(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key] += n
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) FilesScanned(n int)                 { m.add("scanned", n) }
func (m *countingMetrics) ScanErrors(n int)                   { m.add("scan_errors", n) }
func (m *countingMetrics) Classified(c reaper.Classification) { m.add(c.String(), 1) }
func (m *countingMetrics) Banished()                          { m.add("banished", 1) }
func (m *countingMetrics) Restored()                          { m.add("restored", 1) }
func (m *countingMetrics) UndoResult(result string)           { m.add("undo_"+result, 1) }
func (m *countingMetrics) LogRecovered()                      { m.add("recovered", 1) }

type fixture struct {
	svc       *reaper.ReaperService
	log       *oplog.MemoryLog
	whitelist *whitelist.MemoryWhitelist
	graveyard *graveyard.FileSystemGraveyard
	undo      *undo.Queue
	clock     *testutil.StubClock
	metrics   *countingMetrics
	root      string
}

func newFixture(t *testing.T, withUndo bool) *fixture {
	t.Helper()

	base := t.TempDir()
	g, err := graveyard.NewFileSystemGraveyard(filepath.Join(base, "graveyard"), nil)
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(base, "home")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		log:       oplog.NewMemoryLog(),
		whitelist: whitelist.NewMemoryWhitelist(),
		graveyard: g,
		clock:     testutil.NewStubClock(time.Now()),
		metrics:   &countingMetrics{},
		root:      root,
	}

	h := hasher.NewSHA256Hasher()
	deps := reaper.ServiceDeps{
		Scanner: scanner.New(scanner.Options{}),
		Classifiers: map[reaper.Policy]reaper.Classifier{
			reaper.PolicyAccumulating: classify.NewAccumulating(h, f.clock, classify.Options{}),
			reaper.PolicyPriority:     classify.NewPriority(h, f.clock, classify.Options{}),
		},
		Graveyard:    g,
		OperationLog: f.log,
		Whitelist:    f.whitelist,
		Metrics:      f.metrics,
		Clock:        f.clock,
	}
	if withUndo {
		f.undo = undo.New(g, f.log, undo.Options{Clock: f.clock, IDs: testutil.NewStubIDGenerator()})
		deps.Undo = f.undo
	}
	f.svc = reaper.NewReaperService(deps)
	return f
}

func TestReaperService_ScanAndClassify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	old := f.clock.Now().AddDate(-1, 0, 0)
	ghost := testutil.WriteFile(t, f.root, "old.txt", "x", old)
	kept := testutil.WriteFile(t, f.root, "kept.txt", "y", old)
	testutil.WriteFile(t, f.root, "new.txt", "z", time.Time{})
	f.whitelist.Add(kept)

	res, err := f.svc.Scan(ctx, f.root, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if f.metrics.get("scanned") != 3 {
		t.Errorf("scanned metric = %d, want 3", f.metrics.get("scanned"))
	}

	out, err := f.svc.Classify(ctx, res.Records, reaper.PolicyAccumulating, true)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(out.Files) != 1 || out.Files[0].Path != ghost {
		t.Fatalf("Files = %+v, want only %s", out.Files, ghost)
	}
	if f.metrics.get("ghost") != 1 {
		t.Errorf("ghost metric = %d, want 1", f.metrics.get("ghost"))
	}

	if _, err := f.svc.Classify(ctx, res.Records, reaper.Policy("random"), true); err == nil {
		t.Error("Classify() with an unknown policy should fail")
	}
}

func TestReaperService_Scan_MissingRoot(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Scan(context.Background(), filepath.Join(f.root, "nope"), nil)
	if !errors.Is(err, reaper.ErrNotFound) {
		t.Errorf("Scan() error = %v, want not found", err)
	}
}

func TestReaperService_Banish(t *testing.T) {
	ctx := context.Background()

	t.Run("moves, logs and registers undo", func(t *testing.T) {
		f := newFixture(t, true)
		src := testutil.WriteFile(t, f.root, "a/b.txt", "abc", time.Time{})
		labels := reaper.NewClassificationSet(reaper.Ghost, reaper.Zombie)

		res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root, Classifications: labels, Size: 3})
		if err != nil {
			t.Fatalf("Banish() error = %v", err)
		}
		testutil.AssertMissing(t, src)

		entries, _ := f.log.Query(reaper.LogFilter{})
		if len(entries) != 1 {
			t.Fatalf("log has %d entries, want 1", len(entries))
		}
		e := entries[0]
		if e.Action != reaper.ActionBanish || e.OriginalPath != src || e.GraveyardPath != res.GraveyardPath ||
			e.Classifications != labels || e.FileSize != 3 || !e.Timestamp.Equal(f.clock.Now()) {
			t.Errorf("log entry = %+v", e)
		}

		if res.Undo == nil || res.Undo.FileName != "b.txt" || res.Undo.GraveyardPath != res.GraveyardPath {
			t.Errorf("Undo = %+v", res.Undo)
		}
		if f.metrics.get("banished") != 1 {
			t.Error("banished metric not counted")
		}
	})

	t.Run("failed move logs nothing", func(t *testing.T) {
		f := newFixture(t, true)

		_, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: filepath.Join(f.root, "gone"), ScanRoot: f.root})
		if !errors.Is(err, reaper.ErrNotFound) {
			t.Errorf("Banish() error = %v, want not found", err)
		}
		if entries, _ := f.log.Query(reaper.LogFilter{}); len(entries) != 0 {
			t.Errorf("log has %d entries, want 0", len(entries))
		}
		if len(f.svc.PendingUndo()) != 0 {
			t.Error("failed banish registered an undo entry")
		}
	})

	t.Run("unrecorded move reports the graveyard location", func(t *testing.T) {
		f := newFixture(t, true)
		f.log.FailAppend = errors.New("disk full")
		src := testutil.WriteFile(t, f.root, "a.txt", "x", time.Time{})

		_, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
		if err == nil {
			t.Fatal("Banish() expected error")
		}
		grave := filepath.Join(f.graveyard.Root(), "a.txt")
		if testutil.ReadFile(t, grave) != "x" {
			t.Error("file should remain in the graveyard")
		}
		if msg := err.Error(); !strings.Contains(msg, grave) {
			t.Errorf("error %q does not name %s", msg, grave)
		}
		if len(f.svc.PendingUndo()) != 0 {
			t.Error("unrecorded banish registered an undo entry")
		}
	})
}

func TestReaperService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("success is logged", func(t *testing.T) {
		f := newFixture(t, false)
		src := testutil.WriteFile(t, f.root, "a.txt", "x", time.Time{})
		res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
		if err != nil {
			t.Fatal(err)
		}

		got, err := f.svc.Restore(ctx, res.GraveyardPath, src)
		if err != nil || got != src {
			t.Fatalf("Restore() = %q, %v", got, err)
		}
		entries, _ := f.log.Query(reaper.LogFilter{})
		if len(entries) != 2 || entries[0].Action != reaper.ActionRestore || entries[0].Error != "" {
			t.Errorf("log = %+v, want a successful restore first", entries)
		}
		if f.metrics.get("restored") != 1 {
			t.Error("restored metric not counted")
		}
	})

	t.Run("failure is logged with its error", func(t *testing.T) {
		f := newFixture(t, false)
		src := testutil.WriteFile(t, f.root, "a.txt", "x", time.Time{})
		res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
		if err != nil {
			t.Fatal(err)
		}
		testutil.WriteFile(t, f.root, "a.txt", "squatter", time.Time{})

		if _, err := f.svc.Restore(ctx, res.GraveyardPath, src); !errors.Is(err, reaper.ErrConflict) {
			t.Fatalf("Restore() error = %v, want conflict", err)
		}
		entries, _ := f.log.Query(reaper.LogFilter{})
		if len(entries) != 2 || entries[0].Action != reaper.ActionRestore || entries[0].Error == "" {
			t.Errorf("log = %+v, want a failed restore first", entries)
		}
	})
}

func TestReaperService_Resurrect(t *testing.T) {
	f := newFixture(t, false)
	path := filepath.Join(f.root, "keep.txt")

	if err := f.svc.Resurrect(path, reaper.NewClassificationSet(reaper.Demon)); err != nil {
		t.Fatalf("Resurrect() error = %v", err)
	}
	if ok, _ := f.whitelist.Contains(path); !ok {
		t.Error("path not whitelisted")
	}
	paths, _ := f.svc.Whitelisted()
	if len(paths) != 1 || paths[0] != path {
		t.Errorf("Whitelisted() = %v", paths)
	}

	action := reaper.ActionResurrect
	entries, err := f.svc.QueryLog(reaper.LogFilter{Action: &action})
	if err != nil || len(entries) != 1 || !entries[0].Classifications.Has(reaper.Demon) {
		t.Errorf("QueryLog() = %+v, %v", entries, err)
	}
}

func TestReaperService_Undo(t *testing.T) {
	ctx := context.Background()

	t.Run("within the window", func(t *testing.T) {
		f := newFixture(t, true)
		src := testutil.WriteFile(t, f.root, "a.txt", "x", time.Time{})
		res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
		if err != nil {
			t.Fatal(err)
		}

		got, err := f.svc.Undo(ctx, res.Undo.ID)
		if err != nil || got != src {
			t.Fatalf("Undo() = %q, %v", got, err)
		}
		if f.metrics.get("undo_executed") != 1 || f.metrics.get("restored") != 1 {
			t.Errorf("metrics = %v", f.metrics.counts)
		}
	})

	t.Run("after the window", func(t *testing.T) {
		f := newFixture(t, true)
		src := testutil.WriteFile(t, f.root, "a.txt", "x", time.Time{})
		res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
		if err != nil {
			t.Fatal(err)
		}
		f.clock.Advance(reaper.DefaultUndoWindow + time.Millisecond)

		if _, err := f.svc.Undo(ctx, res.Undo.ID); !errors.Is(err, reaper.ErrExpired) {
			t.Errorf("Undo() error = %v, want expired", err)
		}
		if f.metrics.get("undo_expired") != 1 {
			t.Errorf("metrics = %v", f.metrics.counts)
		}
		testutil.AssertMissing(t, src)
	})

	t.Run("no queue", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Undo(ctx, "id-1"); !errors.Is(err, reaper.ErrNotFound) {
			t.Errorf("Undo() error = %v, want not found", err)
		}
		if f.svc.PendingUndo() != nil {
			t.Error("PendingUndo() without a queue should be nil")
		}
	})
}

func TestReaperService_ClearUndo(t *testing.T) {
	ctx := context.Background()

	t.Run("one then all", func(t *testing.T) {
		f := newFixture(t, true)
		var ids []string
		for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
			src := testutil.WriteFile(t, f.root, name, name, time.Time{})
			res, err := f.svc.Banish(ctx, reaper.BanishRequest{Path: src, ScanRoot: f.root})
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, res.Undo.ID)
		}

		if n, err := f.svc.ClearUndo(ids[0]); err != nil || n != 1 {
			t.Fatalf("ClearUndo(%s) = %d, %v", ids[0], n, err)
		}
		if _, err := f.svc.Undo(ctx, ids[0]); !errors.Is(err, reaper.ErrNotFound) {
			t.Errorf("Undo() after clear error = %v, want not found", err)
		}
		if n, err := f.svc.ClearUndo(""); err != nil || n != 2 {
			t.Errorf("ClearUndo(\"\") = %d, %v; want 2", n, err)
		}
		if len(f.svc.PendingUndo()) != 0 {
			t.Error("pending undos left after clearing all")
		}
	})

	t.Run("no queue", func(t *testing.T) {
		f := newFixture(t, false)
		if n, err := f.svc.ClearUndo(""); err != nil || n != 0 {
			t.Errorf("ClearUndo(\"\") = %d, %v", n, err)
		}
		if _, err := f.svc.ClearUndo("id-1"); !errors.Is(err, reaper.ErrNotFound) {
			t.Errorf("ClearUndo() error = %v, want not found", err)
		}
	})
}
