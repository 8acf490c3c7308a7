package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root file holding extra ignore patterns.
const IgnoreFileName = ".reaperignore"

// rule is one parsed ignore line.
type rule struct {
	glob    string
	path    bool // contains or starts with '/': matched against the whole relative path
	dirOnly bool // trailing '/': matches directories only
	negate  bool // leading '!': re-includes what earlier rules excluded
}

// IgnoreMatcher decides which entries a scan skips. Rules are applied in
// order and the last matching rule wins, so "!keep.iso" after "*.iso"
// re-includes one file. Globs use filepath.Match syntax.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher parses raw patterns. Blank lines and lines starting with
// '#' are skipped. The ignore file itself is always ignored.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{rules: []rule{{glob: IgnoreFileName}}}
	for _, raw := range rawPatterns {
		if r, ok := parseRule(raw); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

func parseRule(raw string) (rule, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(s, "!") {
		r.negate = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "/") {
		r.dirOnly = true
		s = strings.TrimRight(s, "/")
	}
	anchored := strings.HasPrefix(s, "/")
	s = strings.TrimLeft(s, "/")
	if s == "" {
		return rule{}, false
	}
	if _, err := filepath.Match(s, ""); err != nil {
		return rule{}, false
	}
	r.glob = s
	r.path = anchored || strings.Contains(s, "/")
	return r, true
}

// LoadIgnoreMatcher combines configured patterns with those in root's
// ignore file; file patterns come last and so take precedence.
func LoadIgnoreMatcher(root string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(append([]string{}, configured...), fromFile...)), nil
}

// Match reports whether a file at relativePath (relative to the scan root)
// is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	return m.MatchEntry(relativePath, false)
}

// MatchEntry is Match for an entry that may be a directory. An ignored
// directory is never descended into.
func (m *IgnoreMatcher) MatchEntry(relativePath string, isDir bool) bool {
	if m == nil {
		return false
	}

	slashed := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.path {
			subject = slashed
		}
		if ok, _ := filepath.Match(r.glob, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// ParseIgnoreFile reads an ignore file and returns its lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
