package reaper

import "context"

// Graveyard moves files into and out of a quarantine tree that mirrors
// their layout relative to the scan root.
type Graveyard interface {
	// Banish moves filePath to Root()/rel(scanRoot, filePath) and returns
	// the new location.
	Banish(ctx context.Context, filePath, scanRoot string) (string, error)

	// Restore moves graveyardPath back to originalPath. It never
	// overwrites: an occupied originalPath is a KindConflict error.
	Restore(ctx context.Context, graveyardPath, originalPath string) (string, error)

	Root() string
}

// Whitelist is the persisted set of paths the user has resurrected.
type Whitelist interface {
	Add(path string) error
	Remove(path string) error
	Contains(path string) (bool, error)
	Paths() ([]string, error)
}
