package debounce

import (
	"sync"
	"testing"
	"time"
)

type fireRecorder struct {
	mu    sync.Mutex
	times []time.Time
	ch    chan struct{}
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan struct{}, 64)}
}

func (r *fireRecorder) fire() {
	r.mu.Lock()
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *fireRecorder) snapshot() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.times...)
}

func TestBurstCoalescesIntoOneTrailingFire(t *testing.T) {
	const quiet = 80 * time.Millisecond
	recorder := newFireRecorder()
	controller := New(quiet, recorder.fire)
	defer controller.Stop()

	var last time.Time
	for i := 0; i < 5; i++ {
		last = time.Now()
		controller.Signal()
		time.Sleep(10 * time.Millisecond)
	}
	if !controller.Pending() {
		t.Fatalf("expected a pending callback")
	}

	select {
	case <-recorder.ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for fire")
	}
	time.Sleep(3 * quiet)

	times := recorder.snapshot()
	if len(times) != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", len(times))
	}
	if times[0].Before(last.Add(quiet)) {
		t.Fatalf("fired %v after last signal, expected at least %v", times[0].Sub(last), quiet)
	}
	if controller.Pending() {
		t.Fatalf("expected nothing pending after fire")
	}
}

func TestSpacedSignalsFireEach(t *testing.T) {
	const quiet = 30 * time.Millisecond
	recorder := newFireRecorder()
	controller := New(quiet, recorder.fire)
	defer controller.Stop()

	const count = 3
	for i := 0; i < count; i++ {
		controller.Signal()
		select {
		case <-recorder.ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fire %d", i+1)
		}
		time.Sleep(quiet)
	}
	if got := len(recorder.snapshot()); got != count {
		t.Fatalf("expected %d fires, got %d", count, got)
	}
}

func TestStopCancelsPending(t *testing.T) {
	recorder := newFireRecorder()
	controller := New(20*time.Millisecond, recorder.fire)

	controller.Signal()
	controller.Stop()
	controller.Signal()

	select {
	case <-recorder.ch:
		t.Fatalf("unexpected fire after stop")
	case <-time.After(100 * time.Millisecond):
	}
	if controller.Pending() {
		t.Fatalf("expected nothing pending after stop")
	}
}

func TestDeadlineTracksLastSignal(t *testing.T) {
	controller := New(time.Second, nil)
	defer controller.Stop()

	if !controller.Deadline().IsZero() {
		t.Fatalf("expected zero deadline before any signal")
	}
	controller.Signal()
	first := controller.Deadline()
	time.Sleep(5 * time.Millisecond)
	controller.Signal()
	second := controller.Deadline()
	if !second.After(first) {
		t.Fatalf("expected deadline to move forward, got %v then %v", first, second)
	}
}

func TestDefaultQuietPeriod(t *testing.T) {
	if New(0, nil).QuietPeriod() != DefaultQuietPeriod {
		t.Fatalf("expected default quiet period")
	}
}
