package reaper

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// FileRecord is one regular file observed by a scan.
type FileRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
	Hash    string // hex SHA-256, empty until computed
}

// Classification is one disposability label.
type Classification uint8

const (
	Ghost Classification = 1 << iota // not modified for a long time
	Demon                            // oversized
	Zombie                           // duplicate content
)

var classificationNames = []struct {
	c    Classification
	name string
}{
	{Ghost, "ghost"},
	{Demon, "demon"},
	{Zombie, "zombie"},
}

func (c Classification) String() string {
	for _, n := range classificationNames {
		if n.c == c {
			return n.name
		}
	}
	return fmt.Sprintf("classification(%d)", uint8(c))
}

// ParseClassification parses a single label name.
func ParseClassification(s string) (Classification, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range classificationNames {
		if n.name == s {
			return n.c, nil
		}
	}
	return 0, fmt.Errorf("unknown classification: %q", s)
}

// ClassificationSet is a set of labels. The zero value is empty.
type ClassificationSet uint8

// NewClassificationSet returns a set holding cs.
func NewClassificationSet(cs ...Classification) ClassificationSet {
	var s ClassificationSet
	for _, c := range cs {
		s = s.With(c)
	}
	return s
}

func (s ClassificationSet) Has(c Classification) bool { return uint8(s)&uint8(c) != 0 }

func (s ClassificationSet) With(c Classification) ClassificationSet {
	return ClassificationSet(uint8(s) | uint8(c))
}

func (s ClassificationSet) Empty() bool { return s == 0 }

// List returns the members in ghost, demon, zombie order.
func (s ClassificationSet) List() []Classification {
	var out []Classification
	for _, n := range classificationNames {
		if s.Has(n.c) {
			out = append(out, n.c)
		}
	}
	return out
}

func (s ClassificationSet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.String()
	}
	return out
}

// String joins member names with commas; the empty set is "".
func (s ClassificationSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// ParseClassificationSet is the inverse of String.
func ParseClassificationSet(s string) (ClassificationSet, error) {
	var set ClassificationSet
	if strings.TrimSpace(s) == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		c, err := ParseClassification(part)
		if err != nil {
			return 0, err
		}
		set = set.With(c)
	}
	return set, nil
}

func (s ClassificationSet) MarshalJSON() ([]byte, error) {
	names := s.Strings()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

func (s *ClassificationSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set ClassificationSet
	for _, n := range names {
		c, err := ParseClassification(n)
		if err != nil {
			return err
		}
		set = set.With(c)
	}
	*s = set
	return nil
}

func (s ClassificationSet) MarshalYAML() (any, error) {
	return s.Strings(), nil
}

// ClassifiedFile is a FileRecord that earned at least one label.
type ClassifiedFile struct {
	FileRecord
	Classifications ClassificationSet

	// DuplicateGroup is the shared hash when the file is a Zombie.
	DuplicateGroup string

	// DuplicateOf is the group's retained copy. Only the priority policy sets it.
	DuplicateOf string
}

// NormalizePath cleans p and converts it to Unicode NFC so that paths
// written by different tools compare equal.
func NormalizePath(p string) string {
	return norm.NFC.String(filepath.Clean(p))
}

// PathSet is an immutable set of normalised paths.
type PathSet struct {
	m map[string]struct{}
}

// NewPathSet builds a PathSet from raw paths.
func NewPathSet(paths []string) PathSet {
	m := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		m[NormalizePath(p)] = struct{}{}
	}
	return PathSet{m: m}
}

func (s PathSet) Contains(path string) bool {
	if len(s.m) == 0 {
		return false
	}
	_, ok := s.m[NormalizePath(path)]
	return ok
}

func (s PathSet) Len() int { return len(s.m) }
