//go:build !unix

package fs

// LockFile is a no-op where flock(2) is unavailable.
func LockFile(path string) (func() error, error) {
	return func() error { return nil }, nil
}
