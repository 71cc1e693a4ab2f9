// Package debounce coalesces bursts of signals into one trailing-edge callback.
package debounce

import (
	"sync"
	"time"
)

const DefaultQuietPeriod = 200 * time.Millisecond

// Controller holds at most one pending timer. Every Signal cancels it and arms
// a new one, so the callback runs once per burst, a full quiet period after the
// last signal. Timer cancel and reschedule happen under one mutex; a timer that
// fired while a later Signal held the lock is recognised by its stale
// generation and dropped.
type Controller struct {
	mutex      sync.Mutex
	quiet      time.Duration
	fire       func()
	timer      *time.Timer
	generation uint64
	deadline   time.Time
	stopped    bool
}

func New(quiet time.Duration, fire func()) *Controller {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Controller{
		quiet: quiet,
		fire:  fire,
	}
}

func (c *Controller) QuietPeriod() time.Duration {
	return c.quiet
}

// Signal records a notify-worthy event and restarts the quiet period.
func (c *Controller) Signal() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	generation := c.generation
	c.deadline = time.Now().Add(c.quiet)
	c.timer = time.AfterFunc(c.quiet, func() {
		c.expire(generation)
	})
}

func (c *Controller) expire(generation uint64) {
	c.mutex.Lock()
	if c.stopped || generation != c.generation {
		c.mutex.Unlock()
		return
	}
	c.timer = nil
	c.deadline = time.Time{}
	fire := c.fire
	c.mutex.Unlock()

	if fire != nil {
		fire()
	}
}

// Pending reports whether a callback is armed.
func (c *Controller) Pending() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.timer != nil
}

// Deadline is when the armed callback will run; zero when nothing is pending.
func (c *Controller) Deadline() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.deadline
}

// Stop cancels any pending callback and ignores later signals.
func (c *Controller) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.deadline = time.Time{}
}
