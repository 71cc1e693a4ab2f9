package reload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"assetwatch/internal/checksum"
	"assetwatch/internal/classify"
	"assetwatch/internal/logging"
	"assetwatch/internal/metrics"
	"assetwatch/internal/watcher"
)

type Options struct {
	Broadcaster          Broadcaster
	QuietPeriod          time.Duration
	IgnorePatterns       []string
	FollowNewDirectories bool
	MaxWatches           int
	Logger               *logging.Logger
	Metrics              *metrics.Registry
}

// Session is a running watch over one root.
type Session struct {
	root         string
	index        *checksum.Index
	orchestrator *watcher.Orchestrator
	pipeline     *Pipeline
	cancel       context.CancelFunc
	done         chan struct{}
	err          error
	closeOnce    sync.Once
}

// WatchDirectory builds the baseline checksum index for root, establishes the
// watches and starts the event loop. root must already be a validated
// directory. The session runs until ctx is cancelled or Close is called.
func WatchDirectory(ctx context.Context, root string, options Options) (*Session, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	logger := options.Logger

	matcher, err := classify.NewMatcher(options.IgnorePatterns...)
	if err != nil {
		return nil, err
	}

	index := checksum.NewIndex()
	if _, err := checksum.Scan(absRoot, index, logger.Named("checksum")); err != nil {
		return nil, fmt.Errorf("baseline scan: %w", err)
	}

	orchestrator, err := watcher.New(watcher.Options{
		Logger:               logger.Named("watcher"),
		FollowNewDirectories: options.FollowNewDirectories,
		MaxWatches:           options.MaxWatches,
	})
	if err != nil {
		return nil, err
	}
	if err := orchestrator.Start(absRoot); err != nil {
		_ = orchestrator.Close()
		return nil, err
	}

	pipeline := NewPipeline(PipelineOptions{
		Classifier: classify.New(classify.Options{
			Root:    absRoot,
			Index:   index,
			Matcher: matcher,
			Logger:  logger.Named("classify"),
		}),
		Broadcaster: options.Broadcaster,
		QuietPeriod: options.QuietPeriod,
		Logger:      logger.Named("reload"),
		Metrics:     options.Metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		root:         absRoot,
		index:        index,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go session.run(runCtx)
	return session, nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	err := s.pipeline.Run(ctx, s.orchestrator)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if closeErr := s.orchestrator.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	s.err = err
}

func (s *Session) Root() string {
	return s.root
}

func (s *Session) Index() *checksum.Index {
	return s.index
}

func (s *Session) Pipeline() *Pipeline {
	return s.pipeline
}

func (s *Session) WatchCount() int {
	return s.orchestrator.WatchCount()
}

// Done is closed once the event loop has stopped and the watches are released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the session and waits for it to finish.
func (s *Session) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return s.err
}
