package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry counts pipeline activity and renders it in the Prometheus text format.
type Registry struct {
	eventsReceived     atomic.Int64
	broadcasts         atomic.Int64
	messagesDelivered  atomic.Int64
	messagesDropped    atomic.Int64
	subscribersCurrent atomic.Int64
	subscribersTotal   atomic.Int64
	decisions          sync.Map
}

type decisionKey struct {
	verdict string
	reason  string
}

var Default = &Registry{}

func (r *Registry) IncEventsReceived() {
	if r == nil {
		return
	}
	r.eventsReceived.Add(1)
}

func (r *Registry) RecordDecision(verdict, reason string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = "unknown"
	}
	value, _ := r.decisions.LoadOrStore(decisionKey{verdict: verdict, reason: reason}, &atomic.Int64{})
	value.(*atomic.Int64).Add(1)
}

// RecordBroadcast counts one debounced broadcast and its per-subscriber outcome.
func (r *Registry) RecordBroadcast(delivered, dropped int) {
	if r == nil {
		return
	}
	r.broadcasts.Add(1)
	r.messagesDelivered.Add(int64(delivered))
	r.messagesDropped.Add(int64(dropped))
}

func (r *Registry) SubscriberConnected() {
	if r == nil {
		return
	}
	r.subscribersCurrent.Add(1)
	r.subscribersTotal.Add(1)
}

func (r *Registry) SubscriberDisconnected() {
	if r == nil {
		return
	}
	r.subscribersCurrent.Add(-1)
}

func (r *Registry) Broadcasts() int64 {
	if r == nil {
		return 0
	}
	return r.broadcasts.Load()
}

// MessagesDropped returns how many per-subscriber deliveries were dropped.
func (r *Registry) MessagesDropped() int64 {
	if r == nil {
		return 0
	}
	return r.messagesDropped.Load()
}

func (r *Registry) Decisions(verdict, reason string) int64 {
	if r == nil {
		return 0
	}
	value, ok := r.decisions.Load(decisionKey{verdict: verdict, reason: reason})
	if !ok {
		return 0
	}
	return value.(*atomic.Int64).Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "assetwatch_events_received_total", "Raw filesystem events received", r.eventsReceived.Load())
	writeCounter(writer, "assetwatch_broadcasts_total", "Debounced rerender broadcasts", r.broadcasts.Load())
	writeCounter(writer, "assetwatch_messages_delivered_total", "Rerender messages queued to subscribers", r.messagesDelivered.Load())
	writeCounter(writer, "assetwatch_messages_dropped_total", "Rerender messages dropped for slow or closing subscribers", r.messagesDropped.Load())
	writeCounter(writer, "assetwatch_subscribers_total", "Subscriber connections accepted", r.subscribersTotal.Load())
	writeGauge(writer, "assetwatch_subscribers", "Currently connected subscribers", r.subscribersCurrent.Load())

	keys := r.decisionKeys()
	writeHelp(writer, "assetwatch_decisions_total", "Classifier decisions by verdict and reason")
	fmt.Fprintln(writer, "# TYPE assetwatch_decisions_total counter")
	for _, key := range keys {
		fmt.Fprintf(writer, "assetwatch_decisions_total{verdict=%s,reason=%s} %d\n",
			formatLabel(key.verdict), formatLabel(key.reason), r.Decisions(key.verdict, key.reason))
	}
	return nil
}

func (r *Registry) decisionKeys() []decisionKey {
	var keys []decisionKey
	r.decisions.Range(func(key, _ any) bool {
		if typed, ok := key.(decisionKey); ok {
			keys = append(keys, typed)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].verdict != keys[j].verdict {
			return keys[i].verdict < keys[j].verdict
		}
		return keys[i].reason < keys[j].reason
	})
	return keys
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func writeGauge(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
