package testutil

import (
	"context"
	"fmt"
	"sync"
)

// StubHasher returns preset digests by path. Paths with no preset digest
// fail with a not-found style error. Safe for concurrent use.
type StubHasher struct {
	mu      sync.Mutex
	digests map[string]string
	errs    map[string]error
	calls   map[string]int
}

func NewStubHasher() *StubHasher {
	return &StubHasher{
		digests: make(map[string]string),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// Set presets the digest returned for path.
func (h *StubHasher) Set(path, digest string) *StubHasher {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digests[path] = digest
	return h
}

// Fail makes hashing path return err.
func (h *StubHasher) Fail(path string, err error) *StubHasher {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs[path] = err
	return h
}

func (h *StubHasher) Hash(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[path]++
	if err, ok := h.errs[path]; ok {
		return "", err
	}
	d, ok := h.digests[path]
	if !ok {
		return "", fmt.Errorf("no digest for %s", path)
	}
	return d, nil
}

// Calls returns how many times path was hashed.
func (h *StubHasher) Calls(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[path]
}

// TotalCalls returns the number of Hash calls across all paths.
func (h *StubHasher) TotalCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		n += c
	}
	return n
}
