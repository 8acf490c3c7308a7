package reaper

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies the failures callers are expected to branch on.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindConflict
	KindAccessDenied
	KindCorrupt
	KindExpired
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindAccessDenied:
		return "access denied"
	case KindCorrupt:
		return "corrupt"
	case KindExpired:
		return "expired"
	case KindInvalid:
		return "invalid"
	default:
		return "error"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrCorrupt      = &Error{Kind: KindCorrupt}
	ErrExpired      = &Error{Kind: KindExpired}
	ErrInvalid      = &Error{Kind: KindInvalid}
)

// Error is a typed failure carrying the operation and path it concerns.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// E builds an *Error. err may be nil.
func E(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by kind so that errors.Is(err, ErrConflict) holds for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// OSError maps filesystem errors onto error kinds. Errors with no matching
// kind are wrapped with the op for context.
func OSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return E(KindNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return E(KindAccessDenied, op, path, err)
	case errors.Is(err, fs.ErrExist):
		return E(KindConflict, op, path, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
