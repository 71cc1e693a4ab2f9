package watcher

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"assetwatch/internal/classify"
	"assetwatch/internal/logging"

	"github.com/fsnotify/fsnotify"
)

func newTestOrchestrator(t *testing.T, options Options) (*Orchestrator, *logging.Buffer) {
	t.Helper()
	buffer := logging.NewBuffer(100)
	if options.Logger == nil {
		options.Logger = logging.NewLoggerWithOutput(buffer, logging.LevelDebug, io.Discard)
	}
	orchestrator, err := New(options)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(func() {
		_ = orchestrator.Close()
	})
	return orchestrator, buffer
}

func waitForPath(events <-chan classify.RawEvent, path string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if event.Path == path {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func TestCollectDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a/b", "c"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "a", "file.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := CollectDirs(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	expected := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "c"),
	}
	if !reflect.DeepEqual(dirs, expected) {
		t.Fatalf("expected %v, got %v", expected, dirs)
	}
}

func TestStartWatchesExistingSubdirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	orchestrator, buffer := newTestOrchestrator(t, Options{})
	if err := orchestrator.Start(root); err != nil {
		t.Fatalf("start: %v", err)
	}
	if orchestrator.WatchCount() != 3 {
		t.Fatalf("expected 3 watches, got %d", orchestrator.WatchCount())
	}

	notice := false
	for _, entry := range buffer.List() {
		if entry.Level == logging.LevelWarning && strings.Contains(entry.Message, "restart") {
			notice = true
		}
	}
	if !notice {
		t.Fatalf("expected the new-directory limitation notice to be logged")
	}

	path := filepath.Join(nested, "sample.js")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !waitForPath(orchestrator.Events(), path, 2*time.Second) {
		t.Fatalf("timed out waiting for nested event")
	}
}

func TestNewSubdirectoryNotWatchedByDefault(t *testing.T) {
	root := t.TempDir()
	orchestrator, _ := newTestOrchestrator(t, Options{})
	if err := orchestrator.Start(root); err != nil {
		t.Fatalf("start: %v", err)
	}

	dir := filepath.Join(root, "later")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !waitForPath(orchestrator.Events(), dir, 2*time.Second) {
		t.Fatalf("expected the directory creation itself to be reported")
	}

	path := filepath.Join(dir, "inside.js")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if waitForPath(orchestrator.Events(), path, 300*time.Millisecond) {
		t.Fatalf("did not expect events from a directory created after startup")
	}
	if orchestrator.WatchCount() != 1 {
		t.Fatalf("expected only the root watch, got %d", orchestrator.WatchCount())
	}
}

func TestFollowNewDirectories(t *testing.T) {
	root := t.TempDir()
	orchestrator, buffer := newTestOrchestrator(t, Options{FollowNewDirectories: true})
	if err := orchestrator.Start(root); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, entry := range buffer.List() {
		if strings.Contains(entry.Message, "restart") {
			t.Fatalf("limitation notice should not be logged when following new directories")
		}
	}

	dir := filepath.Join(root, "later")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !waitForPath(orchestrator.Events(), dir, 2*time.Second) {
		t.Fatalf("expected directory creation event")
	}
	if orchestrator.WatchCount() != 2 {
		t.Fatalf("expected new directory to be watched, got %d watches", orchestrator.WatchCount())
	}

	path := filepath.Join(dir, "inside.js")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !waitForPath(orchestrator.Events(), path, 2*time.Second) {
		t.Fatalf("timed out waiting for event inside new directory")
	}
}

func TestWatchLimitIsLoudButNotFatal(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	orchestrator, buffer := newTestOrchestrator(t, Options{MaxWatches: 1})
	if err := orchestrator.Start(root); err != nil {
		t.Fatalf("start: %v", err)
	}
	if orchestrator.WatchCount() != 1 {
		t.Fatalf("expected only the root watch, got %d", orchestrator.WatchCount())
	}

	found := false
	for _, entry := range buffer.List() {
		if entry.Level == logging.LevelError && entry.Fields["path"] == filepath.Join(root, "a") {
			found = true
			if entry.Fields["error"] != ErrMaxWatchesExceeded.Error() {
				t.Fatalf("unexpected error field %q", entry.Fields["error"])
			}
		}
	}
	if !found {
		t.Fatalf("expected an error-level log for the unwatched subdirectory")
	}
}

func TestStartRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.js")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	orchestrator, _ := newTestOrchestrator(t, Options{})
	if err := orchestrator.Start(path); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}

func TestCloseClosesEvents(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, Options{})
	if err := orchestrator.Start(t.TempDir()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := orchestrator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-orchestrator.Events():
		for ok {
			_, ok = <-orchestrator.Events()
		}
	case <-time.After(time.Second):
		t.Fatalf("events channel not closed")
	}
	if err := orchestrator.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[fsnotify.Op]classify.Kind{
		fsnotify.Create: classify.KindRename,
		fsnotify.Remove: classify.KindRename,
		fsnotify.Rename: classify.KindRename,
		fsnotify.Write:  classify.KindChange,
		fsnotify.Chmod:  classify.KindChange,
	}
	for op, expected := range cases {
		if kindOf(op) != expected {
			t.Fatalf("kindOf(%s) = %s, expected %s", op, kindOf(op), expected)
		}
	}
}
