//go:build !unix

package fs

import "io/fs"

// FileIdentity is unavailable on this platform.
func FileIdentity(info fs.FileInfo) (dev, ino uint64, ok bool) {
	return 0, 0, false
}
