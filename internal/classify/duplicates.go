package classify

import (
	"context"

	"reaper-go/internal/reaper"
)

// duplicates is the outcome of hashing a candidate set.
type duplicates struct {
	// hashes holds the digest of each candidate that was hashed, by index.
	hashes []string

	// groups maps a digest shared by two or more candidates to their indices,
	// in candidate order.
	groups map[string][]int

	errs []reaper.HashError
}

func (d *duplicates) groupOf(i int) (string, bool) {
	if d == nil || d.hashes[i] == "" {
		return "", false
	}
	h := d.hashes[i]
	_, ok := d.groups[h]
	return h, ok
}

// findDuplicates hashes every candidate that could have a twin and groups
// them by digest. Only files sharing a size are hashed, and with quick set
// same-size groups are first split by a prefix fingerprint; neither step
// changes the resulting groups. Every hash completes before it returns.
func findDuplicates(ctx context.Context, h reaper.Hasher, candidates []reaper.FileRecord, quick bool) (*duplicates, error) {
	d := &duplicates{
		hashes: make([]string, len(candidates)),
		groups: make(map[string][]int),
	}

	bySize := make(map[int64][]int)
	var sizes []int64
	for i, r := range candidates {
		if _, seen := bySize[r.Size]; !seen {
			sizes = append(sizes, r.Size)
		}
		bySize[r.Size] = append(bySize[r.Size], i)
	}

	fp, canFingerprint := h.(reaper.Fingerprinter)

	var toHash [][]int
	for _, size := range sizes {
		idx := bySize[size]
		if len(idx) < 2 {
			continue
		}
		if !quick || !canFingerprint || size <= QuickFilterBytes {
			toHash = append(toHash, idx)
			continue
		}

		byPrefix := make(map[uint64][]int)
		var order []uint64
		for _, i := range idx {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sum, err := fp.Fingerprint(ctx, candidates[i].Path, QuickFilterBytes)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				d.errs = append(d.errs, reaper.HashError{Path: candidates[i].Path, Err: err})
				continue
			}
			if _, seen := byPrefix[sum]; !seen {
				order = append(order, sum)
			}
			byPrefix[sum] = append(byPrefix[sum], i)
		}
		for _, sum := range order {
			if len(byPrefix[sum]) >= 2 {
				toHash = append(toHash, byPrefix[sum])
			}
		}
	}

	byHash := make(map[string][]int)
	for _, idx := range toHash {
		for _, i := range idx {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sum, err := h.Hash(ctx, candidates[i].Path)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				d.errs = append(d.errs, reaper.HashError{Path: candidates[i].Path, Err: err})
				continue
			}
			d.hashes[i] = sum
			byHash[sum] = append(byHash[sum], i)
		}
	}

	for sum, idx := range byHash {
		if len(idx) >= 2 {
			d.groups[sum] = idx
		}
	}
	return d, nil
}

// candidates drops whitelisted records.
func candidates(records []reaper.FileRecord, whitelist reaper.PathSet) []reaper.FileRecord {
	out := make([]reaper.FileRecord, 0, len(records))
	for _, r := range records {
		if whitelist.Contains(r.Path) {
			continue
		}
		out = append(out, r)
	}
	return out
}
