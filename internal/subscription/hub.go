// Package subscription accepts websocket subscribers and fans rerender messages
// out to them. Delivery is best effort: a subscriber whose queue is full or
// whose connection is closing misses the message, and nothing is retried.
package subscription

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"assetwatch/internal/logging"
	"assetwatch/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultQueueSize = 8
	wsWriteTimeout   = 10 * time.Second
	closeGracePeriod = time.Second
)

// Subscriber is one connected websocket client.
type Subscriber struct {
	ID          string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
}

// Writable reports whether the subscriber still accepts messages.
func (s *Subscriber) Writable() bool {
	return !s.closing.Load()
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.done)
		_ = s.conn.Close()
	})
}

type HubOptions struct {
	Logger       *logging.Logger
	Metrics      *metrics.Registry
	QueueSize    int
	WriteTimeout time.Duration
}

// Hub tracks open subscribers.
type Hub struct {
	mutex        sync.Mutex
	subscribers  map[string]*Subscriber
	closed       bool
	logger       *logging.Logger
	metrics      *metrics.Registry
	queueSize    int
	writeTimeout time.Duration
}

func NewHub(options HubOptions) *Hub {
	queueSize := options.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	writeTimeout := options.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = wsWriteTimeout
	}
	return &Hub{
		subscribers:  make(map[string]*Subscriber),
		logger:       options.Logger,
		metrics:      options.Metrics,
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
	}
}

// Register adopts conn and starts its writer. It returns nil and closes conn
// when the hub is already closed.
func (h *Hub) Register(conn *websocket.Conn) *Subscriber {
	subscriber := &Subscriber{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, h.queueSize),
		done:        make(chan struct{}),
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		_ = conn.Close()
		return nil
	}
	h.subscribers[subscriber.ID] = subscriber
	count := len(h.subscribers)
	h.mutex.Unlock()

	h.metrics.SubscriberConnected()
	h.logger.Info("subscriber connected", map[string]string{
		"subscriber":  subscriber.ID,
		"remote_addr": conn.RemoteAddr().String(),
		"subscribers": strconv.Itoa(count),
	})

	go h.writeLoop(subscriber)
	return subscriber
}

// Unregister removes the subscriber and closes its connection. Safe to call
// more than once.
func (h *Hub) Unregister(subscriber *Subscriber) {
	if subscriber == nil {
		return
	}
	h.mutex.Lock()
	_, ok := h.subscribers[subscriber.ID]
	delete(h.subscribers, subscriber.ID)
	count := len(h.subscribers)
	h.mutex.Unlock()

	subscriber.close()
	if !ok {
		return
	}
	h.metrics.SubscriberDisconnected()
	h.logger.Info("subscriber disconnected", map[string]string{
		"subscriber":  subscriber.ID,
		"subscribers": strconv.Itoa(count),
	})
}

// Broadcast queues message for every writable subscriber without blocking.
// It returns how many subscribers accepted it and how many were dropped
// because their queue was full.
func (h *Hub) Broadcast(message string) (delivered, dropped int) {
	h.mutex.Lock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for _, subscriber := range h.subscribers {
		targets = append(targets, subscriber)
	}
	h.mutex.Unlock()

	payload := []byte(message)
	for _, subscriber := range targets {
		if !subscriber.Writable() {
			continue
		}
		select {
		case subscriber.send <- payload:
			delivered++
		default:
			dropped++
			h.logger.Warn("subscriber queue full; message dropped", map[string]string{
				"subscriber": subscriber.ID,
			})
		}
	}
	return delivered, dropped
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subscribers)
}

// Close sends a going-away frame to every subscriber and disconnects them.
func (h *Hub) Close() {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return
	}
	h.closed = true
	subscribers := h.subscribers
	h.subscribers = make(map[string]*Subscriber)
	h.mutex.Unlock()

	deadline := time.Now().Add(closeGracePeriod)
	for _, subscriber := range subscribers {
		_ = subscriber.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		subscriber.close()
		h.metrics.SubscriberDisconnected()
	}
}

func (h *Hub) writeLoop(subscriber *Subscriber) {
	for {
		select {
		case payload := <-subscriber.send:
			if err := subscriber.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
				h.dropAfterWriteError(subscriber, err)
				return
			}
			if err := subscriber.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.dropAfterWriteError(subscriber, err)
				return
			}
		case <-subscriber.done:
			return
		}
	}
}

func (h *Hub) dropAfterWriteError(subscriber *Subscriber, err error) {
	h.logger.Debug("subscriber write failed", map[string]string{
		"subscriber": subscriber.ID,
		"error":      err.Error(),
	})
	h.Unregister(subscriber)
}
