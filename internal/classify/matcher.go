package classify

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns covers platform noise: the macOS Finder metadata file
// and the temporary files GNOME's GIO writes during an atomic save.
var DefaultIgnorePatterns = []string{
	".DS_Store",
	"*goutputstream*",
}

// Matcher holds the ignore globs. A pattern matches either the base name or
// the slash-separated path relative to the watched root, so "vendor/*.js"
// covers only the top-level vendor directory and "**/vendor/**" any depth.
type Matcher struct {
	mu       sync.RWMutex
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles the defaults plus any extra patterns.
func NewMatcher(extra ...string) (*Matcher, error) {
	matcher := &Matcher{}
	if err := matcher.Add(DefaultIgnorePatterns...); err != nil {
		return nil, err
	}
	if err := matcher.Add(extra...); err != nil {
		return nil, err
	}
	return matcher, nil
}

// Add compiles and appends patterns. Blank lines and #-comments are skipped.
func (m *Matcher) Add(patterns ...string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	accepted := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		pattern = filepath.ToSlash(pattern)
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("compile ignore pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
		accepted = append(accepted, pattern)
	}

	m.mu.Lock()
	m.globs = append(m.globs, compiled...)
	m.patterns = append(m.patterns, accepted...)
	m.mu.Unlock()
	return nil
}

// Match reports whether path, given relative to the watched root, is ignored.
func (m *Matcher) Match(path string) bool {
	if m == nil || path == "" {
		return false
	}
	normalized := filepath.ToSlash(path)
	base := filepath.Base(path)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.globs {
		if g.Match(base) || g.Match(normalized) {
			return true
		}
	}
	return false
}

func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}
