package whitelist

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
	Version int      `json:"version"`
	Paths   []string `json:"paths"`
}

// FileWhitelist serves lookups from memory and rewrites the JSON document on
// every change.
type FileWhitelist struct {
	mu        sync.RWMutex
	path      string
	paths     map[string]struct{}
	recovered bool
	logger    reaper.Logger
}

// OpenFileWhitelist loads the whitelist at path. A missing file is an empty
// set; an unparsable one is moved to path+".corrupt" and replaced.
func OpenFileWhitelist(path string, logger reaper.Logger) (*FileWhitelist, error) {
	if logger == nil {
		logger = reaper.NewNopLogger()
	}
	w := &FileWhitelist{path: path, paths: map[string]struct{}{}, logger: logger}

	set, err := readDocument(path)
	switch {
	case err == nil:
		w.paths = set
		return w, nil
	case errors.Is(err, reaper.ErrNotFound):
		return w, nil
	case !errors.Is(err, reaper.ErrCorrupt):
		return nil, err
	}

	aside := path + ".corrupt"
	if renameErr := os.Rename(path, aside); renameErr != nil {
		return nil, reaper.OSError("replace corrupt whitelist", path, renameErr)
	}
	if perr := w.persist(w.paths); perr != nil {
		return nil, perr
	}
	w.recovered = true
	logger.Warn("whitelist unreadable, started a new one", "path", path, "moved_to", aside, "error", err)
	return w, nil
}

func readDocument(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, reaper.OSError("read whitelist", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, reaper.E(reaper.KindCorrupt, "decode whitelist", path, err)
	}
	if doc.Version != formatVersion {
		return nil, reaper.E(reaper.KindCorrupt, "decode whitelist", path, fmt.Errorf("unsupported version %d", doc.Version))
	}
	set := make(map[string]struct{}, len(doc.Paths))
	for _, p := range doc.Paths {
		set[reaper.NormalizePath(p)] = struct{}{}
	}
	return set, nil
}

func (w *FileWhitelist) Add(path string) error {
	path = reaper.NormalizePath(path)
	return w.update(func(set map[string]struct{}) bool {
		if _, ok := set[path]; ok {
			return false
		}
		set[path] = struct{}{}
		return true
	})
}

// Remove deletes path from the set; removing an absent path is not an error.
func (w *FileWhitelist) Remove(path string) error {
	path = reaper.NormalizePath(path)
	return w.update(func(set map[string]struct{}) bool {
		if _, ok := set[path]; !ok {
			return false
		}
		delete(set, path)
		return true
	})
}

// update applies change to the set on disk, read under the lock file so a
// concurrent writer's paths survive. change reports whether it modified set.
func (w *FileWhitelist) update(change func(set map[string]struct{}) bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	unlock, err := fs.LockFile(w.path)
	if err != nil {
		return reaper.OSError("lock whitelist", w.path, err)
	}
	defer unlock()

	set, err := readDocument(w.path)
	if errors.Is(err, reaper.ErrNotFound) {
		set, err = map[string]struct{}{}, nil
	}
	if err != nil {
		return err
	}
	if change(set) {
		if err := w.persist(set); err != nil {
			return err
		}
	}
	w.paths = set
	return nil
}

func (w *FileWhitelist) Contains(path string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.paths[reaper.NormalizePath(path)]
	return ok, nil
}

func (w *FileWhitelist) Paths() ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.paths), nil
}

// Reload replaces the in-memory set with the file's content. An unreadable
// file leaves the current set in place.
func (w *FileWhitelist) Reload() error {
	set, err := readDocument(w.path)
	if errors.Is(err, reaper.ErrNotFound) {
		set, err = map[string]struct{}{}, nil
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.paths = set
	w.mu.Unlock()
	return nil
}

// Recovered reports whether a corrupt file was replaced on open.
func (w *FileWhitelist) Recovered() bool {
	return w.recovered
}

// Path returns the JSON document location.
func (w *FileWhitelist) Path() string {
	return w.path
}

func (w *FileWhitelist) persist(set map[string]struct{}) error {
	data, err := json.MarshalIndent(document{Version: formatVersion, Paths: sortedKeys(set)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding whitelist: %w", err)
	}
	if err := fs.WriteFileAtomic(w.path, data, 0600); err != nil {
		return fmt.Errorf("writing whitelist %s: %w", w.path, err)
	}
	return nil
}

var _ reaper.Whitelist = (*FileWhitelist)(nil)
