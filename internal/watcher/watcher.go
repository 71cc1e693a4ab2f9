package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"assetwatch/internal/classify"

	"github.com/fsnotify/fsnotify"
)

// New creates an Orchestrator. Nothing is watched until Start.
func New(options Options) (*Orchestrator, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}

	return &Orchestrator{
		watcher:    source,
		logger:     options.Logger,
		follow:     options.FollowNewDirectories,
		maxWatches: maxWatches,
		watched:    make(map[string]struct{}),
		events:     make(chan classify.RawEvent, defaultEventsBuffer),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}, nil
}

// Start watches root and, because the primitive is not recursive, every
// subdirectory that exists right now. A failure on root is returned; a failure
// on a subdirectory is logged at error level and that subtree goes unwatched.
func (o *Orchestrator) Start(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s: not a directory", absRoot)
	}

	o.mutex.Lock()
	if o.closed {
		o.mutex.Unlock()
		return errors.New("watcher is closed")
	}
	if o.started {
		o.mutex.Unlock()
		return errors.New("watcher already started")
	}
	o.started = true
	o.root = absRoot
	o.mutex.Unlock()

	if err := o.addWatch(absRoot); err != nil {
		return fmt.Errorf("watch root %s: %w", absRoot, err)
	}

	if !NativeRecursive {
		if !o.follow {
			o.logger.Warn("directories created under the root after startup will not be watched; restart to pick them up", map[string]string{
				"root": absRoot,
			})
		}
		o.addTree(absRoot)
	}

	o.mutex.Lock()
	if o.closed {
		o.mutex.Unlock()
		return errors.New("watcher is closed")
	}
	o.running = true
	active := len(o.watched)
	o.mutex.Unlock()

	o.logger.Info("watching directory", map[string]string{
		"root":    absRoot,
		"watches": strconv.Itoa(active),
	})

	go o.run()
	return nil
}

// Events delivers raw notifications. The channel is closed after Close.
func (o *Orchestrator) Events() <-chan classify.RawEvent {
	return o.events
}

// Root returns the absolute root passed to Start.
func (o *Orchestrator) Root() string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.root
}

func (o *Orchestrator) WatchCount() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.watched)
}

// Close stops delivery and releases the fsnotify watcher.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	o.closeOnce.Do(func() {
		o.mutex.Lock()
		o.closed = true
		running := o.running
		o.mutex.Unlock()

		close(o.done)
		err = o.watcher.Close()
		if running {
			<-o.finished
		} else {
			close(o.events)
		}
	})
	return err
}

func (o *Orchestrator) run() {
	defer close(o.finished)
	defer close(o.events)

	for {
		select {
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			o.handleEvent(event)
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.handleError(err)
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) handleEvent(event fsnotify.Event) {
	if o.follow && event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := o.addWatch(event.Name); err != nil {
				o.logWatchFailure(event.Name, err)
			}
			o.addTree(event.Name)
		}
	}
	if event.Op.Has(fsnotify.Remove) {
		o.forget(event.Name)
	}
	o.emit(classify.RawEvent{Kind: kindOf(event.Op), Path: event.Name})
}

func (o *Orchestrator) handleError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		o.logger.Warn("watch event queue overflowed; changes may have been missed", map[string]string{
			"error": err.Error(),
		})
		o.emit(classify.RawEvent{Kind: classify.KindOverflow})
		return
	}
	o.logger.Warn("watcher error", map[string]string{
		"error": err.Error(),
	})
}

func (o *Orchestrator) emit(event classify.RawEvent) {
	select {
	case o.events <- event:
	case <-o.done:
	}
}

// kindOf folds fsnotify operations into the two shapes the classifier sees.
func kindOf(op fsnotify.Op) classify.Kind {
	if op.Has(fsnotify.Create) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		return classify.KindRename
	}
	return classify.KindChange
}
