package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assetwatch/internal/logging"
	"assetwatch/internal/metrics"
	"assetwatch/internal/version"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	readHeaderTimeout = 5 * time.Second
)

type ServerOptions struct {
	Hub     *Hub
	Logger  *logging.Logger
	Metrics *metrics.Registry
	// AllowedOrigins restricts websocket upgrades by Origin. Empty allows any
	// origin, since the designer is served from a different host.
	AllowedOrigins []string
}

// Server exposes the subscription endpoint. Any path that is not one of the
// diagnostic routes upgrades to a websocket.
type Server struct {
	hub            *Hub
	logger         *logging.Logger
	metrics        *metrics.Registry
	allowedOrigins []string
	router         *chi.Mux
	httpServer     *http.Server
}

func NewServer(options ServerOptions) *Server {
	hub := options.Hub
	if hub == nil {
		hub = NewHub(HubOptions{Logger: options.Logger, Metrics: options.Metrics})
	}
	server := &Server{
		hub:            hub,
		logger:         options.Logger,
		metrics:        options.Metrics,
		allowedOrigins: options.AllowedOrigins,
	}

	router := chi.NewRouter()
	router.Get("/healthz", server.handleHealth)
	router.Get("/metrics", server.handleMetrics)
	router.Get("/debug/logs", server.handleLogs)
	router.HandleFunc("/*", server.handleSubscribe)
	server.router = router

	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return server
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("subscription server listening", map[string]string{
		"addr": listener.Addr().String(),
	})
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown disconnects subscribers, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, s.allowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", map[string]string{
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return
	}

	subscriber := s.hub.Register(conn)
	if subscriber == nil {
		return
	}
	defer s.hub.Unregister(subscriber)

	// Clients have nothing to say; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Count(),
		"version":     version.Get().Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	registry := s.metrics
	if registry == nil {
		registry = metrics.Default
	}
	_ = registry.WritePrometheus(w)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.logger.Buffer().List()
	if entries == nil {
		entries = []logging.Entry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func isOriginAllowed(r *http.Request, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, candidate := range allowed {
		if strings.EqualFold(origin, candidate) || strings.EqualFold(host, candidate) {
			return true
		}
	}
	return false
}
