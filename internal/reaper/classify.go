package reaper

import (
	"context"
	"fmt"
)

// Policy selects a classification rule set.
type Policy string

const (
	// PolicyAccumulating assigns every label a file qualifies for.
	PolicyAccumulating Policy = "accumulating"
	// PolicyPriority assigns exactly one label, Demon over Zombie over Ghost.
	PolicyPriority Policy = "priority"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAccumulating, PolicyPriority:
		return p, nil
	case "":
		return PolicyAccumulating, nil
	default:
		return "", fmt.Errorf("unknown classification policy: %q", s)
	}
}

// HashError records a file excluded from duplicate detection.
type HashError struct {
	Path string
	Err  error
}

// ClassifyResult holds the labelled files, sorted by path.
type ClassifyResult struct {
	Files      []ClassifiedFile
	HashErrors []HashError
}

// Classifier labels scan records. Whitelisted paths are never labelled and
// files earning no label are dropped. When hashing is false no file is
// labelled Zombie. The only error is cancellation.
type Classifier interface {
	Classify(ctx context.Context, records []FileRecord, whitelist PathSet, hashing bool) (*ClassifyResult, error)
}
