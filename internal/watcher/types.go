package watcher

import (
	"errors"
	"sync"

	"assetwatch/internal/classify"
	"assetwatch/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// NativeRecursive reports whether the underlying primitive covers a whole tree
// from a single subscription.
const NativeRecursive = false

const (
	defaultMaxWatches   = 8192
	defaultEventsBuffer = 256
)

var ErrMaxWatchesExceeded = errors.New("max watches exceeded")

// Options controls orchestrator behavior.
type Options struct {
	Logger *logging.Logger
	// FollowNewDirectories adds watches for directories created after Start.
	// Off by default: new subdirectories stay unwatched until a restart.
	FollowNewDirectories bool
	MaxWatches           int
}

// Orchestrator owns the fsnotify watcher for one root.
type Orchestrator struct {
	watcher    *fsnotify.Watcher
	logger     *logging.Logger
	follow     bool
	maxWatches int

	mutex   sync.Mutex
	root    string
	watched map[string]struct{}
	started bool
	running bool
	closed  bool

	events    chan classify.RawEvent
	done      chan struct{}
	closeOnce sync.Once
	finished  chan struct{}
}
