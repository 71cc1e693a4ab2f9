// Package reload wires the watch orchestrator, the classifier, the debouncer
// and the subscriber hub into one event loop.
package reload

import (
	"context"
	"strconv"
	"sync"
	"time"

	"assetwatch/internal/classify"
	"assetwatch/internal/debounce"
	"assetwatch/internal/logging"
	"assetwatch/internal/metrics"
)

// RerenderMessage is the only message subscribers ever receive.
const RerenderMessage = "rerender"

// Source produces raw filesystem events. The channel closes when the source
// shuts down.
type Source interface {
	Events() <-chan classify.RawEvent
}

// Broadcaster fans a message out to subscribers without blocking.
type Broadcaster interface {
	Broadcast(message string) (delivered, dropped int)
}

type PipelineOptions struct {
	Classifier  *classify.Classifier
	Broadcaster Broadcaster
	QuietPeriod time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.Registry
}

// Pipeline classifies events on a single goroutine and turns each burst of
// notify verdicts into one broadcast.
type Pipeline struct {
	classifier  *classify.Classifier
	broadcaster Broadcaster
	debouncer   *debounce.Controller
	logger      *logging.Logger
	metrics     *metrics.Registry

	mutex      sync.Mutex
	broadcasts int
	lastSent   time.Time
}

func NewPipeline(options PipelineOptions) *Pipeline {
	classifier := options.Classifier
	if classifier == nil {
		classifier = classify.New(classify.Options{Logger: options.Logger})
	}
	pipeline := &Pipeline{
		classifier:  classifier,
		broadcaster: options.Broadcaster,
		logger:      options.Logger,
		metrics:     options.Metrics,
	}
	pipeline.debouncer = debounce.New(options.QuietPeriod, pipeline.broadcast)
	return pipeline
}

// Run consumes source until ctx is cancelled or the source closes its
// channel. A pending broadcast is cancelled on return.
func (p *Pipeline) Run(ctx context.Context, source Source) error {
	defer p.debouncer.Stop()
	events := source.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(event)
		}
	}
}

// Handle classifies one event and restarts the quiet period when it is a
// material change.
func (p *Pipeline) Handle(event classify.RawEvent) classify.Decision {
	p.metrics.IncEventsReceived()
	decision := p.classifier.Classify(event)
	p.metrics.RecordDecision(decision.Verdict.String(), string(decision.Reason))
	if p.logger.Enabled(logging.LevelDebug) {
		p.logger.Debug("event classified", map[string]string{
			"kind":    string(event.Kind),
			"path":    event.Path,
			"verdict": decision.Verdict.String(),
			"reason":  string(decision.Reason),
		})
	}
	if decision.Notify() {
		p.debouncer.Signal()
	}
	return decision
}

// Pending reports whether a broadcast is scheduled.
func (p *Pipeline) Pending() bool {
	return p.debouncer.Pending()
}

// Broadcasts returns how many debounced broadcasts have been sent and when the
// last one went out.
func (p *Pipeline) Broadcasts() (int, time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.broadcasts, p.lastSent
}

func (p *Pipeline) broadcast() {
	delivered, dropped := 0, 0
	if p.broadcaster != nil {
		delivered, dropped = p.broadcaster.Broadcast(RerenderMessage)
	}
	p.metrics.RecordBroadcast(delivered, dropped)

	p.mutex.Lock()
	p.broadcasts++
	p.lastSent = time.Now()
	p.mutex.Unlock()

	fields := map[string]string{
		"message":   RerenderMessage,
		"delivered": strconv.Itoa(delivered),
	}
	if dropped > 0 {
		fields["dropped"] = strconv.Itoa(dropped)
	}
	p.logger.Info("rerender broadcast sent", fields)
}
