package reaper

import (
	"context"
	"errors"
	"fmt"
)

// ReaperService is the orchestration layer between the user-facing
// front ends and the scanning, classification and graveyard components.
type ReaperService struct {
	scanner     Scanner
	classifiers map[Policy]Classifier
	graveyard   Graveyard
	oplog       OperationLog
	whitelist   Whitelist
	undo        UndoQueue
	metrics     Metrics
	logger      Logger
	clock       Clock
}

// ServiceDeps lists the collaborators of a ReaperService. Undo may be nil
// for one-shot invocations where no undo window exists; Metrics, Logger and
// Clock default to no-op or real implementations.
type ServiceDeps struct {
	Scanner      Scanner
	Classifiers  map[Policy]Classifier
	Graveyard    Graveyard
	OperationLog OperationLog
	Whitelist    Whitelist
	Undo         UndoQueue
	Metrics      Metrics
	Logger       Logger
	Clock        Clock
}

func NewReaperService(d ServiceDeps) *ReaperService {
	s := &ReaperService{
		scanner:     d.Scanner,
		classifiers: d.Classifiers,
		graveyard:   d.Graveyard,
		oplog:       d.OperationLog,
		whitelist:   d.Whitelist,
		undo:        d.Undo,
		metrics:     d.Metrics,
		logger:      d.Logger,
		clock:       d.Clock,
	}
	if s.metrics == nil {
		s.metrics = NopMetrics{}
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	return s
}

// Scan walks root. See Scanner for the error contract.
func (s *ReaperService) Scan(ctx context.Context, root string, events chan<- ScanEvent) (*ScanResult, error) {
	res, err := s.scanner.Scan(ctx, root, events)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	s.metrics.FilesScanned(len(res.Records))
	s.metrics.ScanErrors(len(res.Errors))
	for _, e := range res.Errors {
		s.logger.Warn("skipped unreadable entry", "path", e.Path, "error", e.Err)
	}
	s.logger.Info("scan finished", "root", root, "files", len(res.Records),
		"errors", len(res.Errors), "cancelled", res.Cancelled, "truncated", res.Truncated)
	return res, nil
}

// Classify labels records under the given policy, excluding whitelisted paths.
func (s *ReaperService) Classify(ctx context.Context, records []FileRecord, policy Policy, hashing bool) (*ClassifyResult, error) {
	c, ok := s.classifiers[policy]
	if !ok {
		return nil, fmt.Errorf("no classifier for policy %q", policy)
	}

	paths, err := s.whitelist.Paths()
	if err != nil {
		return nil, fmt.Errorf("loading whitelist: %w", err)
	}

	res, err := c.Classify(ctx, records, NewPathSet(paths), hashing)
	if err != nil {
		return nil, err
	}

	for _, he := range res.HashErrors {
		s.logger.Warn("excluded from duplicate detection", "path", he.Path, "error", he.Err)
	}
	for _, f := range res.Files {
		for _, c := range f.Classifications.List() {
			s.metrics.Classified(c)
		}
	}
	s.logger.Info("classification finished", "policy", string(policy), "candidates", len(records),
		"classified", len(res.Files), "hash_errors", len(res.HashErrors))
	return res, nil
}

// BanishRequest identifies a file to move into the graveyard.
type BanishRequest struct {
	Path            string
	ScanRoot        string
	Classifications ClassificationSet
	Size            int64
}

// BanishResult is the outcome of a successful banish. Undo is nil when the
// service has no undo queue.
type BanishResult struct {
	GraveyardPath string
	Undo          *UndoEntry
}

// Banish moves the file to the graveyard, records the move and registers it
// for undo. If the move succeeds but cannot be recorded the error names the
// graveyard location and no undo is registered.
func (s *ReaperService) Banish(ctx context.Context, req BanishRequest) (*BanishResult, error) {
	graveyardPath, err := s.graveyard.Banish(ctx, req.Path, req.ScanRoot)
	if err != nil {
		return nil, err
	}

	entry := LogEntry{
		Timestamp:       s.clock.Now(),
		Action:          ActionBanish,
		FilePath:        req.Path,
		OriginalPath:    req.Path,
		GraveyardPath:   graveyardPath,
		Classifications: req.Classifications,
		FileSize:        req.Size,
	}
	if err := s.oplog.Append(entry); err != nil {
		s.logger.Error("banished file not recorded", "path", req.Path, "graveyard_path", graveyardPath, "error", err)
		return nil, fmt.Errorf("recording banish of %s (now at %s): %w", req.Path, graveyardPath, err)
	}
	s.metrics.Banished()
	s.logger.Info("file banished", "path", req.Path, "graveyard_path", graveyardPath, "size", req.Size)

	res := &BanishResult{GraveyardPath: graveyardPath}
	if s.undo != nil {
		u := s.undo.Register(BanishInfo{
			FilePath:        req.Path,
			GraveyardPath:   graveyardPath,
			FileSize:        req.Size,
			Classifications: req.Classifications,
		})
		res.Undo = &u
	}
	return res, nil
}

// Restore moves a graveyard file back to originalPath. Every attempt is
// logged; failed attempts carry the error text.
func (s *ReaperService) Restore(ctx context.Context, graveyardPath, originalPath string) (string, error) {
	restored, restoreErr := s.graveyard.Restore(ctx, graveyardPath, originalPath)

	entry := LogEntry{
		Timestamp:     s.clock.Now(),
		Action:        ActionRestore,
		FilePath:      originalPath,
		OriginalPath:  originalPath,
		GraveyardPath: graveyardPath,
	}
	if restoreErr != nil {
		entry.Error = restoreErr.Error()
	}

	if err := s.oplog.Append(entry); err != nil {
		if restoreErr != nil {
			s.logger.Error("restore attempt not recorded", "path", originalPath, "error", err)
			return "", restoreErr
		}
		return "", fmt.Errorf("recording restore of %s: %w", restored, err)
	}
	if restoreErr != nil {
		s.logger.Warn("restore failed", "path", originalPath, "graveyard_path", graveyardPath, "error", restoreErr)
		return "", restoreErr
	}

	s.metrics.Restored()
	s.logger.Info("file restored", "path", restored, "graveyard_path", graveyardPath)
	return restored, nil
}

// Resurrect whitelists path so future scans never classify it.
func (s *ReaperService) Resurrect(path string, labels ClassificationSet) error {
	path = NormalizePath(path)
	if err := s.whitelist.Add(path); err != nil {
		return fmt.Errorf("whitelisting %s: %w", path, err)
	}
	entry := LogEntry{
		Timestamp:       s.clock.Now(),
		Action:          ActionResurrect,
		FilePath:        path,
		Classifications: labels,
	}
	if err := s.oplog.Append(entry); err != nil {
		return fmt.Errorf("recording resurrect of %s: %w", path, err)
	}
	s.logger.Info("file resurrected", "path", path)
	return nil
}

// Undo executes a pending undo entry and returns the restored path.
func (s *ReaperService) Undo(ctx context.Context, id string) (string, error) {
	if s.undo == nil {
		return "", E(KindNotFound, "undo", id, errors.New("no undo queue in this session"))
	}
	restored, err := s.undo.Execute(ctx, id)
	switch {
	case err == nil:
		s.metrics.UndoResult("executed")
		s.metrics.Restored()
		s.logger.Info("banish undone", "id", id, "path", restored)
	case errors.Is(err, ErrExpired):
		s.metrics.UndoResult("expired")
	case errors.Is(err, ErrNotFound):
		s.metrics.UndoResult("not_found")
	case errors.Is(err, ErrConflict):
		s.metrics.UndoResult("conflict")
	default:
		s.metrics.UndoResult("failed")
	}
	if err != nil {
		s.logger.Warn("undo failed", "id", id, "error", err)
	}
	return restored, err
}

// PendingUndo returns the entries that can still be undone.
func (s *ReaperService) PendingUndo() []UndoEntry {
	if s.undo == nil {
		return nil
	}
	return s.undo.Active()
}

// ClearUndo drops one pending undo, or all of them when id is empty, and
// returns how many were dropped.
func (s *ReaperService) ClearUndo(id string) (int, error) {
	if s.undo == nil {
		if id == "" {
			return 0, nil
		}
		return 0, E(KindNotFound, "clear undo", id, errors.New("no undo queue in this session"))
	}
	if id == "" {
		n := s.undo.ClearAll()
		s.logger.Info("pending undos cleared", "count", n)
		return n, nil
	}
	if err := s.undo.Clear(id); err != nil {
		return 0, err
	}
	s.logger.Info("pending undo cleared", "id", id)
	return 1, nil
}

// QueryLog returns matching log entries, newest first.
func (s *ReaperService) QueryLog(filter LogFilter) ([]LogEntry, error) {
	entries, err := s.oplog.Query(filter)
	if err != nil {
		return nil, fmt.Errorf("querying operation log: %w", err)
	}
	return entries, nil
}

// Whitelisted returns every resurrected path.
func (s *ReaperService) Whitelisted() ([]string, error) {
	return s.whitelist.Paths()
}
