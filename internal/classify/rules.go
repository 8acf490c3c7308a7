// Package classify labels scanned files as Ghost, Demon or Zombie under one
// of two policies.
package classify

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// DemonSize is the size above which a file is always a Demon.
	DemonSize = 500 * 1024 * 1024

	// GhostMonths is how long a file must go unmodified to be a Ghost.
	GhostMonths = 6

	// AgingMonths is how long a large-type file must go unmodified to be a
	// Demon under the priority policy.
	AgingMonths = 3

	// QuickFilterBytes is the prefix length fingerprinted before full hashing.
	QuickFilterBytes = 64 * 1024

	// DefaultBulkLimit caps the files a bulk scan records and classifies.
	DefaultBulkLimit = 1000
)

// largeTypes are extensions of archive, disk image and media files.
var largeTypes = map[string]struct{}{
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".tgz": {},
	".bz2": {}, ".xz": {}, ".iso": {}, ".dmg": {}, ".img": {},
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".m4v": {}, ".mp3": {}, ".wav": {}, ".flac": {}, ".aac": {},
	".m4a": {}, ".ogg": {}, ".psd": {},
}

// IsLargeType reports whether path has an archive, disk image or media extension.
func IsLargeType(path string) bool {
	_, ok := largeTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Options tunes both policies.
type Options struct {
	// QuickFilter splits same-size groups by a prefix fingerprint before
	// full hashing, when the hasher supports it.
	QuickFilter bool

	// Limit caps the candidates considered by the priority policy when
	// positive. Zero or negative means every candidate is classified.
	Limit int
}

func ghostCutoff(now time.Time) time.Time { return now.AddDate(0, -GhostMonths, 0) }

func agingCutoff(now time.Time) time.Time { return now.AddDate(0, -AgingMonths, 0) }
