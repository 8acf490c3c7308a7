package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reaper-go/internal/reaper"
)

// Resolve converts a user-supplied path to a clean absolute path and checks
// that it names an existing regular file or directory.
func Resolve(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return "", reaper.OSError("resolve", absPath, err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", reaper.E(reaper.KindInvalid, "resolve", absPath, fmt.Errorf("symlinks not supported"))
	case mode&os.ModeDevice != 0:
		return "", reaper.E(reaper.KindInvalid, "resolve", absPath, fmt.Errorf("device files not supported"))
	case mode&os.ModeNamedPipe != 0:
		return "", reaper.E(reaper.KindInvalid, "resolve", absPath, fmt.Errorf("named pipes not supported"))
	case mode&os.ModeSocket != 0:
		return "", reaper.E(reaper.KindInvalid, "resolve", absPath, fmt.Errorf("sockets not supported"))
	}

	return absPath, nil
}

// RelUnder returns path relative to root. It fails with KindInvalid when path
// is root itself or lies outside it.
func RelUnder(root, path string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return "", reaper.E(reaper.KindInvalid, "relative path", path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", reaper.E(reaper.KindInvalid, "relative path", path, fmt.Errorf("not under %s", root))
	}
	return rel, nil
}

// Within reports whether path is root or lies below it.
func Within(root, path string) bool {
	if filepath.Clean(root) == filepath.Clean(path) {
		return true
	}
	_, err := RelUnder(root, path)
	return err == nil
}
