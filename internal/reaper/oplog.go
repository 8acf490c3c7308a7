package reaper

import (
	"fmt"
	"strings"
	"time"
)

// Action is the kind of mutation recorded in the operation log.
type Action string

const (
	ActionBanish    Action = "banish"
	ActionResurrect Action = "resurrect"
	ActionRestore   Action = "restore"
)

// ParseAction accepts any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionBanish, ActionResurrect, ActionRestore:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action: %q", s)
	}
}

// LogEntry records a single mutation. Entries are never modified once appended.
type LogEntry struct {
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	Action          Action            `json:"action" yaml:"action"`
	FilePath        string            `json:"filePath" yaml:"file_path"`
	OriginalPath    string            `json:"originalPath,omitempty" yaml:"original_path,omitempty"`
	GraveyardPath   string            `json:"graveyardPath,omitempty" yaml:"graveyard_path,omitempty"`
	Classifications ClassificationSet `json:"classifications,omitempty" yaml:"classifications,omitempty"`
	FileSize        int64             `json:"fileSize,omitempty" yaml:"file_size,omitempty"`

	// Error is set on restore attempts that did not move the file.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// LogFilter narrows a log query. Nil fields are unconstrained; the time
// bounds are inclusive.
type LogFilter struct {
	Action *Action
	Since  *time.Time
	Until  *time.Time
}

// Match reports whether e satisfies every set constraint.
func (f LogFilter) Match(e LogEntry) bool {
	if f.Action != nil && e.Action != *f.Action {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

// OperationLog is the durable, append-only record of mutations.
//
// Append must not report success until the entry is durable. Query returns
// matching entries newest first; entries with equal timestamps are returned
// most recently appended first.
type OperationLog interface {
	Append(entry LogEntry) error
	Query(filter LogFilter) ([]LogEntry, error)

	// Recovered reports whether an unreadable store was replaced on open.
	Recovered() bool

	Close() error
}
