package classify

import (
	"context"
	"sort"

	"reaper-go/internal/reaper"
)

// Priority assigns at most one label per file, taking the first match of
// Demon, Zombie, Ghost. A Demon is larger than DemonSize, or a large-type
// file unmodified for AgingMonths. In each duplicate group the newest file
// (then the shortest path) is kept unlabelled as the primary; every other
// member is a Zombie pointing at it.
type Priority struct {
	hasher reaper.Hasher
	clock  reaper.Clock
	opts   Options
}

func NewPriority(hasher reaper.Hasher, clock reaper.Clock, opts Options) *Priority {
	return &Priority{hasher: hasher, clock: clock, opts: opts}
}

func (p *Priority) Classify(ctx context.Context, records []reaper.FileRecord, whitelist reaper.PathSet, hashing bool) (*reaper.ClassifyResult, error) {
	cands := candidates(records, whitelist)
	if n := p.opts.Limit; n > 0 && len(cands) > n {
		cands = cands[:n]
	}

	var dups *duplicates
	primaryOf := make(map[int]int)
	if hashing {
		var err error
		dups, err = findDuplicates(ctx, p.hasher, cands, p.opts.QuickFilter)
		if err != nil {
			return nil, err
		}
		for _, idx := range dups.groups {
			primary := choosePrimary(cands, idx)
			for _, i := range idx {
				if i != primary {
					primaryOf[i] = primary
				}
			}
		}
	}

	now := p.clock.Now()
	ghostBefore := ghostCutoff(now)
	agingBefore := agingCutoff(now)

	res := &reaper.ClassifyResult{}
	if dups != nil {
		res.HashErrors = dups.errs
	}

	for i, r := range cands {
		f := reaper.ClassifiedFile{FileRecord: r}
		if dups != nil {
			f.Hash = dups.hashes[i]
		}

		primary, isCopy := primaryOf[i]
		switch {
		case r.Size > DemonSize || (IsLargeType(r.Path) && r.ModTime.Before(agingBefore)):
			f.Classifications = reaper.NewClassificationSet(reaper.Demon)
		case isCopy:
			f.Classifications = reaper.NewClassificationSet(reaper.Zombie)
			f.DuplicateGroup = f.Hash
			f.DuplicateOf = cands[primary].Path
		case r.ModTime.Before(ghostBefore):
			f.Classifications = reaper.NewClassificationSet(reaper.Ghost)
		default:
			continue
		}
		res.Files = append(res.Files, f)
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

// choosePrimary picks the group member to keep: most recently modified,
// then shortest path, then lexically first.
func choosePrimary(cands []reaper.FileRecord, idx []int) int {
	ordered := append([]int(nil), idx...)
	sort.Slice(ordered, func(a, b int) bool {
		ra, rb := cands[ordered[a]], cands[ordered[b]]
		if !ra.ModTime.Equal(rb.ModTime) {
			return ra.ModTime.After(rb.ModTime)
		}
		if len(ra.Path) != len(rb.Path) {
			return len(ra.Path) < len(rb.Path)
		}
		return ra.Path < rb.Path
	})
	return ordered[0]
}

var _ reaper.Classifier = (*Priority)(nil)
