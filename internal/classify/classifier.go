package classify

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetwatch/internal/checksum"
	"assetwatch/internal/logging"

	"golang.org/x/time/rate"
)

const defaultDiagnosticInterval = 5 * time.Second

type Options struct {
	// Root resolves relative event paths.
	Root    string
	Index   *checksum.Index
	Matcher *Matcher
	Logger  *logging.Logger
	// DiagnosticInterval throttles the "refresh manually" warning emitted for
	// unresolvable events. The verdict itself is never throttled.
	DiagnosticInterval time.Duration
}

// Classifier decides whether a raw filesystem event is a material change.
// It is not safe for concurrent use; the reload pipeline calls it from a
// single goroutine.
type Classifier struct {
	root        string
	index       *checksum.Index
	matcher     *Matcher
	logger      *logging.Logger
	diagnostics *rate.Limiter
}

func New(options Options) *Classifier {
	index := options.Index
	if index == nil {
		index = checksum.NewIndex()
	}
	matcher := options.Matcher
	if matcher == nil {
		matcher, _ = NewMatcher()
	}
	interval := options.DiagnosticInterval
	if interval <= 0 {
		interval = defaultDiagnosticInterval
	}
	return &Classifier{
		root:        options.Root,
		index:       index,
		matcher:     matcher,
		logger:      options.Logger,
		diagnostics: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (c *Classifier) Index() *checksum.Index {
	return c.index
}

// Classify inspects the filesystem as it is now, not as the event describes it;
// by the time an event is handled the path may already have moved on.
func (c *Classifier) Classify(event RawEvent) Decision {
	if event.Path == "" {
		if c.diagnostics.Allow() {
			c.logger.Warn("the platform did not report which file changed; refresh the designer manually if it looks stale", map[string]string{
				"kind": string(event.Kind),
			})
		}
		return Decision{Verdict: Notify, Reason: ReasonUnresolvable}
	}

	path := event.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.root, path)
	}
	if c.matcher.Match(c.relative(path)) {
		return Decision{Verdict: Ignore, Reason: ReasonIgnoredPattern, Path: event.Path}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Decision{Verdict: Notify, Reason: ReasonMissing, Path: path}
		}
		return c.readFailed(path, err)
	}

	switch {
	case info.IsDir():
		return Decision{Verdict: Notify, Reason: ReasonDirectory, Path: path}
	case !info.Mode().IsRegular():
		return Decision{Verdict: Ignore, Reason: ReasonOther, Path: path}
	}

	id, err := checksum.IdentityOf(path)
	if err != nil {
		return c.readFailed(path, err)
	}
	digest, err := checksum.HashFile(path)
	if err != nil {
		return c.readFailed(path, err)
	}

	previous, tracked := c.index.Lookup(id)
	if tracked && previous == digest {
		return Decision{Verdict: Ignore, Reason: ReasonUnchanged, Path: path}
	}
	c.index.Record(id, digest)
	if tracked {
		return Decision{Verdict: Notify, Reason: ReasonContentChanged, Path: path}
	}
	return Decision{Verdict: Notify, Reason: ReasonNewFile, Path: path}
}

// relative returns path relative to the watched root, or path itself when it
// lies outside the root.
func (c *Classifier) relative(path string) string {
	if c.root == "" {
		return path
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// readFailed treats a file that vanished or became unreadable mid-classification
// like a missing path.
func (c *Classifier) readFailed(path string, err error) Decision {
	c.logger.Debug("classify read failed", map[string]string{
		"path":  path,
		"error": err.Error(),
	})
	return Decision{Verdict: Notify, Reason: ReasonReadFailed, Path: path}
}
