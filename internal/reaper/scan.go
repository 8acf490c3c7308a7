package reaper

import "context"

// ScanEvent is emitted on the optional events channel during a scan.
// It is either a ScanProgress or a ScanError.
type ScanEvent interface {
	scanEvent()
}

// ScanProgress reports the number of files recorded so far.
type ScanProgress struct {
	Count    int
	LastPath string
}

// ScanError reports an entry that could not be read. The scan continues past it.
type ScanError struct {
	Path string
	Err  error
}

func (ScanProgress) scanEvent() {}
func (ScanError) scanEvent()    {}

func (e ScanError) Error() string { return e.Path + ": " + e.Err.Error() }

// ScanResult is everything a scan produced, complete or not.
type ScanResult struct {
	Root      string
	Records   []FileRecord
	Errors    []ScanError
	Cancelled bool
	Truncated bool
}

// Scanner walks a directory tree and records every regular file in it.
// A failure to read root itself is returned as an error; every other
// failure is reported per entry. A cancelled scan returns its partial
// result with Cancelled set and a nil error.
type Scanner interface {
	Scan(ctx context.Context, root string, events chan<- ScanEvent) (*ScanResult, error)
}

// Hasher computes content digests.
type Hasher interface {
	// Hash returns the lowercase hex SHA-256 of the file at path.
	Hash(ctx context.Context, path string) (string, error)
}

// Fingerprinter is implemented by hashers that can cheaply fingerprint
// a file prefix. Classifiers use it to split same-size groups before hashing.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string, n int64) (uint64, error)
}
