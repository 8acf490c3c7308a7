package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"reaper-go/internal/classify"
	"reaper-go/internal/config"
	"reaper-go/internal/database"
	"reaper-go/internal/fs"
	"reaper-go/internal/graveyard"
	"reaper-go/internal/hashcache"
	"reaper-go/internal/hasher"
	"reaper-go/internal/metrics"
	"reaper-go/internal/oplog"
	"reaper-go/internal/reaper"
	"reaper-go/internal/scanner"
	"reaper-go/internal/undo"
	"reaper-go/internal/whitelist"
)

// Options tailor a ReaperApp to the command being run.
type Options struct {
	// Command names the CLI command, recorded with the session.
	Command string

	// Bulk caps the scan at the configured bulk limit and classifies with
	// the priority policy.
	Bulk bool

	// NoHash disables duplicate detection regardless of config.
	NoHash bool

	// Policy overrides the configured and bulk policies when set.
	Policy string

	// Undo enables the undo queue. Only long-lived sessions need it.
	Undo bool

	// ConfigPath is the config file the app was loaded from. Scans skip it.
	ConfigPath string

	// Stderr receives log lines at StderrLevel and above. Nil means os.Stderr.
	Stderr      io.Writer
	StderrLevel slog.Level
}

// ReaperApp is the application layer between the CLI and ReaperService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases resources on Close.
type ReaperApp struct {
	cfg       *config.Config
	opts      Options
	session   *Session
	db        *database.SQLiteDatabase
	oplog     reaper.OperationLog
	whitelist reaper.Whitelist
	graveyard *graveyard.FileSystemGraveyard
	cache     *hashcache.CachingHasher
	metrics   *metrics.Registry
	undo      *undo.Queue
	watcher   *whitelist.Watcher
	service   *reaper.ReaperService
	policy    reaper.Policy
	hashing   bool
	logger    *slog.Logger
	logFile   *os.File
}

// NewReaperApp creates a fully wired ReaperApp from the given config.
// The caller must call Close when done.
func NewReaperApp(cfg *config.Config, opts Options) (_ *ReaperApp, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &ReaperApp{cfg: cfg, opts: opts, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.session = NewSession(reaper.UUIDGenerator{}.New()[:8], opts.Command)
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.BaseDir, "log")
	}
	a.logger, a.logFile, err = newLogger(logDir, a.session.ID, stderr, opts.StderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: a.logger}

	if cfg.Storage.Type == "sqlite" {
		if a.db, err = database.NewDatabaseFromConfig(cfg.Storage, logger); err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
	}
	if a.oplog, err = oplog.NewOperationLogFromConfig(cfg.Storage, a.db, logger); err != nil {
		return nil, fmt.Errorf("opening operation log: %w", err)
	}
	if a.oplog.Recovered() {
		a.metrics.LogRecovered()
	}
	if a.whitelist, err = whitelist.NewWhitelistFromConfig(cfg.Storage, a.db, reaper.RealClock{}, logger); err != nil {
		return nil, fmt.Errorf("opening whitelist: %w", err)
	}

	if a.graveyard, err = graveyard.NewFileSystemGraveyard(cfg.GraveyardDir, logger); err != nil {
		return nil, fmt.Errorf("creating graveyard: %w", err)
	}

	var h reaper.Hasher = hasher.NewSHA256Hasher()
	if cfg.HashCache.Enabled {
		if a.cache, err = hashcache.Open(hashcache.Config{Dir: cfg.HashCache.Dir, Logger: logger}, h); err != nil {
			return nil, fmt.Errorf("opening hash cache: %w", err)
		}
		h = a.cache
	}

	classifyOpts := classify.Options{QuickFilter: cfg.Classify.QuickFilter}
	if opts.Bulk {
		classifyOpts.Limit = bulkLimit(cfg.Scan.BulkLimit)
	}
	classifiers := map[reaper.Policy]reaper.Classifier{
		reaper.PolicyAccumulating: classify.NewAccumulating(h, reaper.RealClock{}, classifyOpts),
		reaper.PolicyPriority:     classify.NewPriority(h, reaper.RealClock{}, classifyOpts),
	}
	if a.policy, err = reaper.ParsePolicy(cfg.Classify.Policy); err != nil {
		return nil, err
	}
	a.hashing = cfg.Classify.Hashing && !opts.NoHash

	scanOpts := scanner.Options{
		Ignore:        cfg.Scan.Ignore,
		Exclude:       []string{cfg.GraveyardDir, cfg.LogDir, cfg.HashCache.Dir, cfg.Storage.DataDir, opts.ConfigPath},
		ProgressEvery: cfg.Scan.ProgressEvery,
	}
	if opts.Bulk {
		a.policy = reaper.PolicyPriority
		scanOpts.MaxFiles = bulkLimit(cfg.Scan.BulkLimit)
	}

	if opts.Policy != "" {
		if a.policy, err = reaper.ParsePolicy(opts.Policy); err != nil {
			return nil, err
		}
	}

	deps := reaper.ServiceDeps{
		Scanner:      scanner.New(scanOpts),
		Classifiers:  classifiers,
		Graveyard:    a.graveyard,
		OperationLog: a.oplog,
		Whitelist:    a.whitelist,
		Metrics:      a.metrics,
		Logger:       logger,
	}
	if opts.Undo {
		a.undo = undo.New(a.graveyard, a.oplog, undo.Options{
			Window:        cfg.Undo.Window.Std(),
			SweepInterval: cfg.Undo.SweepInterval.Std(),
			Logger:        logger,
		})
		deps.Undo = a.undo
	}
	a.service = reaper.NewReaperService(deps)

	a.logger.Info("session started", "command", opts.Command, "storage", cfg.Storage.Type, "graveyard", cfg.GraveyardDir)
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *ReaperApp) Config() *config.Config { return a.cfg }

// Session returns the current session record.
func (a *ReaperApp) Session() *Session { return a.session }

// Policy returns the classification policy scans use.
func (a *ReaperApp) Policy() reaper.Policy { return a.policy }

// StartBackground runs the undo sweeper and, for file storage, reloads the
// whitelist when another process changes it. Both stop on Close or when ctx
// is done.
func (a *ReaperApp) StartBackground(ctx context.Context) error {
	if a.undo != nil {
		if err := a.undo.Start(ctx); err != nil {
			return err
		}
	}
	if fw, ok := a.whitelist.(*whitelist.FileWhitelist); ok && a.watcher == nil {
		w, err := whitelist.NewWatcher(fw, &slogAdapter{l: a.logger})
		if err != nil {
			a.logger.Warn("whitelist changes from other processes will not be seen", "error", err)
			return nil
		}
		a.watcher = w
		go w.Run(ctx)
	}
	return nil
}

// ScanReport is the combined outcome of walking and classifying a tree.
type ScanReport struct {
	Root       string
	Scan       *reaper.ScanResult
	Files      []reaper.ClassifiedFile
	HashErrors []reaper.HashError
}

// Scan resolves rawRoot, walks it and classifies what it found. events may
// be nil.
func (a *ReaperApp) Scan(ctx context.Context, rawRoot string, events chan<- reaper.ScanEvent) (*ScanReport, error) {
	root, err := a.scanRoot(rawRoot)
	if err != nil {
		return nil, err
	}

	res, err := a.service.Scan(ctx, root, events)
	if err != nil {
		return nil, err
	}
	report := &ScanReport{Root: root, Scan: res}
	if res.Cancelled {
		return report, nil
	}

	classified, err := a.service.Classify(ctx, res.Records, a.policy, a.hashing)
	if err != nil {
		return nil, err
	}
	report.Files = classified.Files
	report.HashErrors = classified.HashErrors
	return report, nil
}

// Banish resolves rawPath and moves it to the graveyard. rawRoot picks the
// scan root the graveyard layout mirrors; empty means the configured
// scan_root, then the home directory.
func (a *ReaperApp) Banish(ctx context.Context, rawPath, rawRoot string) (*reaper.BanishResult, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	root, err := a.scanRoot(rawRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, reaper.OSError("banish", p, err)
	}
	return a.service.Banish(ctx, reaper.BanishRequest{Path: p, ScanRoot: root, Size: info.Size()})
}

// BanishFile moves a file from a scan report to the graveyard, keeping its labels.
func (a *ReaperApp) BanishFile(ctx context.Context, f reaper.ClassifiedFile, root string) (*reaper.BanishResult, error) {
	return a.service.Banish(ctx, reaper.BanishRequest{
		Path:            f.Path,
		ScanRoot:        root,
		Classifications: f.Classifications,
		Size:            f.Size,
	})
}

// Restore moves a graveyard file back. Neither path has to exist beforehand;
// relative paths are made absolute.
func (a *ReaperApp) Restore(ctx context.Context, rawGraveyardPath, rawOriginalPath string) (string, error) {
	grave, err := filepath.Abs(rawGraveyardPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	orig, err := filepath.Abs(rawOriginalPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if !fs.Within(a.graveyard.Root(), grave) {
		return "", reaper.E(reaper.KindInvalid, "restore", grave, fmt.Errorf("not inside the graveyard %s", a.graveyard.Root()))
	}
	return a.service.Restore(ctx, grave, orig)
}

// Resurrect whitelists rawPath. The path need not exist.
func (a *ReaperApp) Resurrect(rawPath string, labels reaper.ClassificationSet) (string, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if err := a.service.Resurrect(p, labels); err != nil {
		return "", err
	}
	return reaper.NormalizePath(p), nil
}

// QueryLog returns matching operation log entries, newest first.
func (a *ReaperApp) QueryLog(filter reaper.LogFilter) ([]reaper.LogEntry, error) {
	return a.service.QueryLog(filter)
}

// Undo reverses a pending banish by id.
func (a *ReaperApp) Undo(ctx context.Context, id string) (string, error) {
	return a.service.Undo(ctx, id)
}

// PendingUndo lists banishes that can still be undone.
func (a *ReaperApp) PendingUndo() []reaper.UndoEntry {
	return a.service.PendingUndo()
}

// ClearUndo drops the pending undo with id, or every pending undo when id
// is empty.
func (a *ReaperApp) ClearUndo(id string) (int, error) {
	return a.service.ClearUndo(id)
}

// Whitelisted lists every resurrected path.
func (a *ReaperApp) Whitelisted() ([]string, error) {
	return a.service.Whitelisted()
}

// Graveyard lists the graveyard's files relative to its root.
func (a *ReaperApp) Graveyard(ctx context.Context) (root string, files []string, err error) {
	files, err = a.graveyard.List(ctx)
	return a.graveyard.Root(), files, err
}

// scanRoot resolves rawRoot, falling back to the configured scan root and
// then the home directory.
func (a *ReaperApp) scanRoot(rawRoot string) (string, error) {
	if rawRoot == "" {
		rawRoot = a.cfg.ScanRoot
	}
	if rawRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		rawRoot = home
	}
	root, err := fs.Resolve(rawRoot)
	if err != nil {
		return "", fmt.Errorf("resolving scan root: %w", err)
	}
	return root, nil
}

// Close stops background work, writes the metrics textfile when configured
// and closes all resources.
func (a *ReaperApp) Close() error {
	var firstErr error
	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			firstErr = err
		}
	}
	if a.logger != nil {
		a.logger.Info("session finished", "command", a.session.Command, "status", a.session.Status)
	}
	if err := a.closeResources(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *ReaperApp) closeResources() error {
	var errs []error
	if a.undo != nil {
		a.undo.Stop()
	}
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.oplog != nil {
		errs = append(errs, a.oplog.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}

// bulkLimit resolves the configured cap: zero means the default and a
// negative value means no cap.
func bulkLimit(configured int) int {
	if configured == 0 {
		return classify.DefaultBulkLimit
	}
	return configured
}
