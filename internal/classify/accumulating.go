package classify

import (
	"context"
	"sort"

	"reaper-go/internal/reaper"
)

// Accumulating assigns every label a file qualifies for:
//
//	Ghost  - not modified for GhostMonths
//	Demon  - larger than DemonSize
//	Zombie - content shared with at least one other candidate
type Accumulating struct {
	hasher reaper.Hasher
	clock  reaper.Clock
	opts   Options
}

func NewAccumulating(hasher reaper.Hasher, clock reaper.Clock, opts Options) *Accumulating {
	return &Accumulating{hasher: hasher, clock: clock, opts: opts}
}

func (a *Accumulating) Classify(ctx context.Context, records []reaper.FileRecord, whitelist reaper.PathSet, hashing bool) (*reaper.ClassifyResult, error) {
	cands := candidates(records, whitelist)

	var dups *duplicates
	if hashing {
		var err error
		dups, err = findDuplicates(ctx, a.hasher, cands, a.opts.QuickFilter)
		if err != nil {
			return nil, err
		}
	}

	now := a.clock.Now()
	ghostBefore := ghostCutoff(now)

	res := &reaper.ClassifyResult{}
	if dups != nil {
		res.HashErrors = dups.errs
	}

	for i, r := range cands {
		var labels reaper.ClassificationSet
		if r.ModTime.Before(ghostBefore) {
			labels = labels.With(reaper.Ghost)
		}
		if r.Size > DemonSize {
			labels = labels.With(reaper.Demon)
		}

		f := reaper.ClassifiedFile{FileRecord: r}
		if dups != nil {
			f.Hash = dups.hashes[i]
			if group, ok := dups.groupOf(i); ok {
				labels = labels.With(reaper.Zombie)
				f.DuplicateGroup = group
			}
		}

		if labels.Empty() {
			continue
		}
		f.Classifications = labels
		res.Files = append(res.Files, f)
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

var _ reaper.Classifier = (*Accumulating)(nil)
