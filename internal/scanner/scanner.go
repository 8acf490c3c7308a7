package scanner

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"reaper-go/internal/fs"
	"reaper-go/internal/reaper"
)

// DefaultProgressEvery is the number of files between progress events.
const DefaultProgressEvery = 100

// Options configures a DirectoryScanner.
type Options struct {
	// Ignore holds glob patterns in addition to the root's ignore file.
	Ignore []string

	// Exclude lists absolute directories never descended into, such as the
	// graveyard when it lives under the scan root.
	Exclude []string

	// ProgressEvery defaults to DefaultProgressEvery; negative disables progress.
	ProgressEvery int

	// MaxFiles stops the scan after that many files when positive.
	MaxFiles int
}

// DirectoryScanner walks a tree depth-first and records every regular file.
type DirectoryScanner struct {
	ignore        []string
	exclude       []string
	progressEvery int
	maxFiles      int
}

func New(opts Options) *DirectoryScanner {
	every := opts.ProgressEvery
	if every == 0 {
		every = DefaultProgressEvery
	}
	exclude := make([]string, 0, len(opts.Exclude))
	for _, e := range opts.Exclude {
		if e != "" {
			exclude = append(exclude, filepath.Clean(e))
		}
	}
	return &DirectoryScanner{
		ignore:        opts.Ignore,
		exclude:       exclude,
		progressEvery: every,
		maxFiles:      opts.MaxFiles,
	}
}

// Scan records every regular file under root. Symlinks, devices, sockets and
// pipes are skipped. Entries that cannot be read are reported on events and
// in the result, and the walk continues. Event sends give up once ctx is done.
func (s *DirectoryScanner) Scan(ctx context.Context, root string, events chan<- reaper.ScanEvent) (*reaper.ScanResult, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, reaper.OSError("scan", root, err)
	}
	if !info.IsDir() {
		return nil, reaper.E(reaper.KindInvalid, "scan", root, errors.New("not a directory"))
	}

	ignore, err := fs.LoadIgnoreMatcher(root, s.ignore)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	res := &reaper.ScanResult{Root: root}

	send := func(ev reaper.ScanEvent) bool {
		if events == nil {
			return true
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(path string, err error) error {
		se := reaper.ScanError{Path: path, Err: err}
		res.Errors = append(res.Errors, se)
		if !send(se) {
			res.Cancelled = true
			return filepath.SkipAll
		}
		return nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if ctx.Err() != nil {
			res.Cancelled = true
			return filepath.SkipAll
		}

		if err != nil {
			if path == root {
				return err
			}
			if r := fail(path, err); r != nil {
				return r
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != root && s.skip(root, path, d.IsDir(), ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fail(path, err)
		}

		res.Records = append(res.Records, reaper.FileRecord{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		n := len(res.Records)

		if s.progressEvery > 0 && n%s.progressEvery == 0 {
			if !send(reaper.ScanProgress{Count: n, LastPath: path}) {
				res.Cancelled = true
				return filepath.SkipAll
			}
		}
		if s.maxFiles > 0 && n >= s.maxFiles {
			res.Truncated = true
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, reaper.OSError("scan", root, walkErr)
	}

	return res, nil
}

func (s *DirectoryScanner) skip(root, path string, isDir bool, ignore *fs.IgnoreMatcher) bool {
	for _, e := range s.exclude {
		if fs.Within(e, path) {
			return true
		}
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return ignore.MatchEntry(rel, isDir)
}

var _ reaper.Scanner = (*DirectoryScanner)(nil)
