package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"reaper-go/internal/reaper"
)

// ChunkSize is the read size used for streaming file content.
const ChunkSize = 64 * 1024

// SHA256Hasher streams files through SHA-256 in fixed-size chunks, checking
// for cancellation between chunks.
type SHA256Hasher struct {
	chunkSize int
}

func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{chunkSize: ChunkSize}
}

// Hash returns the lowercase hex SHA-256 of the file at path.
func (h *SHA256Hasher) Hash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", reaper.OSError("hash", path, err)
	}
	defer f.Close()

	sum := sha256.New()
	if err := h.stream(ctx, f, sum, -1); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// Fingerprint returns the xxhash64 of the first n bytes of the file.
// Files shorter than n are fingerprinted in full.
func (h *SHA256Hasher) Fingerprint(ctx context.Context, path string, n int64) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, reaper.OSError("fingerprint", path, err)
	}
	defer f.Close()

	d := xxhash.New()
	if err := h.stream(ctx, f, d, n); err != nil {
		return 0, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return d.Sum64(), nil
}

// stream copies up to limit bytes (all when limit < 0) from r to w.
func (h *SHA256Hasher) stream(ctx context.Context, r io.Reader, w io.Writer, limit int64) error {
	if limit >= 0 {
		r = io.LimitReader(r, limit)
	}
	buf := make([]byte, h.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var (
	_ reaper.Hasher        = (*SHA256Hasher)(nil)
	_ reaper.Fingerprinter = (*SHA256Hasher)(nil)
)
