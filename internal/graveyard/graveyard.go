// Package graveyard moves files into and out of a quarantine tree that
// mirrors their layout under the scan root:
//
//	<scanRoot>/photos/2019/a.jpg  ->  <root>/photos/2019/a.jpg
//
// Nothing is ever deleted: a banished file can always be restored until the
// user removes it from the graveyard by hand.
package graveyard

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"reaper-go/internal/fs"
	"reaper-go/internal/reaper"
)

// FileSystemGraveyard is the on-disk implementation of reaper.Graveyard.
type FileSystemGraveyard struct {
	root   string
	logger reaper.Logger

	// rename is os.Rename outside of tests.
	rename func(oldpath, newpath string) error
}

// NewFileSystemGraveyard creates the graveyard root if needed.
func NewFileSystemGraveyard(root string, logger reaper.Logger) (*FileSystemGraveyard, error) {
	if root == "" {
		return nil, errors.New("graveyard root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving graveyard root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating graveyard root: %w", err)
	}
	if logger == nil {
		logger = reaper.NewNopLogger()
	}
	return &FileSystemGraveyard{root: abs, logger: logger, rename: os.Rename}, nil
}

func (g *FileSystemGraveyard) Root() string { return g.root }

// PathFor returns where filePath would be kept when banished from scanRoot.
func (g *FileSystemGraveyard) PathFor(filePath, scanRoot string) (string, error) {
	rel, err := fs.RelUnder(scanRoot, filePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(g.root, rel), nil
}

// Banish moves filePath into the graveyard. It refuses to overwrite an
// existing graveyard file.
func (g *FileSystemGraveyard) Banish(ctx context.Context, filePath, scanRoot string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fs.Within(g.root, filePath) {
		return "", reaper.E(reaper.KindInvalid, "banish", filePath, errors.New("file is already in the graveyard"))
	}

	dest, err := g.PathFor(filePath, scanRoot)
	if err != nil {
		return "", err
	}

	info, err := os.Lstat(filePath)
	if err != nil {
		return "", reaper.OSError("banish", filePath, err)
	}
	if !info.Mode().IsRegular() {
		return "", reaper.E(reaper.KindInvalid, "banish", filePath, errors.New("not a regular file"))
	}

	if err := checkFree("banish", dest); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", reaper.OSError("banish", filepath.Dir(dest), err)
	}

	if err := g.move(filePath, dest, info); err != nil {
		return "", err
	}
	return dest, nil
}

// Restore moves graveyardPath back to originalPath. If anything exists at
// originalPath the call fails with KindConflict and nothing is touched.
func (g *FileSystemGraveyard) Restore(ctx context.Context, graveyardPath, originalPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := checkFree("restore", originalPath); err != nil {
		return "", err
	}

	info, err := os.Lstat(graveyardPath)
	if err != nil {
		return "", reaper.OSError("restore", graveyardPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", reaper.E(reaper.KindInvalid, "restore", graveyardPath, errors.New("not a regular file"))
	}

	if err := os.MkdirAll(filepath.Dir(originalPath), 0755); err != nil {
		return "", reaper.OSError("restore", filepath.Dir(originalPath), err)
	}

	if err := g.move(graveyardPath, originalPath, info); err != nil {
		return "", err
	}
	g.pruneEmptyDirs(filepath.Dir(graveyardPath))
	return originalPath, nil
}

// List returns every file in the graveyard, relative to its root, sorted.
func (g *FileSystemGraveyard) List(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(g.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(g.root, path)
			if err != nil {
				return err
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing graveyard: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func checkFree(op, path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return reaper.E(reaper.KindConflict, op, path, errors.New("destination already exists"))
	case errors.Is(err, iofs.ErrNotExist):
		return nil
	default:
		return reaper.OSError(op, path, err)
	}
}

// move renames src to dst, falling back to copy-then-delete when they are
// on different filesystems.
func (g *FileSystemGraveyard) move(src, dst string, info iofs.FileInfo) error {
	err := g.rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return reaper.OSError("move", src, err)
	}

	g.logger.Debug("cross-device move, copying", "src", src, "dst", dst)
	return copyThenRemove(src, dst, info)
}

// copyThenRemove writes src to a temp file beside dst, links it into place
// and only then removes src. On failure no partial file is left at dst.
func copyThenRemove(src, dst string, info iofs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return reaper.OSError("copy", src, err)
	}
	defer in.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".reaper-tmp-*")
	if err != nil {
		return reaper.OSError("copy", dst, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, in)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if written != info.Size() {
		tmpFile.Close()
		return fmt.Errorf("copying %s: size mismatch: expected %d bytes, got %d", src, info.Size(), written)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing copy of %s: %w", src, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing copy of %s: %w", src, err)
	}

	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("preserving mode of %s: %w", src, err)
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserving mtime of %s: %w", src, err)
	}

	// Link fails when dst exists, so a file that appeared there since the
	// caller checked is never replaced.
	if err := os.Link(tmpPath, dst); err != nil {
		return reaper.OSError("copy", dst, err)
	}
	os.Remove(tmpPath)
	success = true

	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return reaper.OSError("remove source", src, err)
	}
	return nil
}

// pruneEmptyDirs removes now-empty directories between dir and the root.
func (g *FileSystemGraveyard) pruneEmptyDirs(dir string) {
	for dir != g.root && fs.Within(g.root, dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

var _ reaper.Graveyard = (*FileSystemGraveyard)(nil)
