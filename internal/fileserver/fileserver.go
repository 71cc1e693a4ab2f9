// Package fileserver serves script assets from the watched directory so the
// designer can load them cross-origin.
package fileserver

import (
	"context"
	"errors"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetwatch/internal/logging"

	"github.com/go-chi/chi/v5"
)

const (
	DefaultExtension  = ".js"
	scriptContentType = "text/javascript"
	readHeaderTimeout = 5 * time.Second
)

type Options struct {
	Root      string
	Extension string
	Logger    *logging.Logger
}

// Server answers requests for <root>/<request path>. Anything that is not
// an existing regular file with the served extension, or whose path contains
// relative segments, is a 404.
type Server struct {
	root       string
	rootName   string
	extension  string
	logger     *logging.Logger
	router     *chi.Mux
	httpServer *http.Server
}

func New(options Options) *Server {
	extension := strings.TrimSpace(options.Extension)
	if extension == "" {
		extension = DefaultExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	root := filepath.Clean(options.Root)
	server := &Server{
		root:      root,
		rootName:  filepath.Base(root),
		extension: extension,
		logger:    options.Logger,
	}

	router := chi.NewRouter()
	router.HandleFunc("/*", server.handleFile)
	server.router = router
	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("serving local files", map[string]string{
		"root": s.root,
		"addr": listener.Addr().String(),
	})
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	fullPath, ok := s.resolve(r)
	if !ok {
		s.notFound(w, r)
		return
	}

	file, err := os.Open(fullPath)
	if err != nil {
		s.notFound(w, r)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.notFound(w, r)
		return
	}

	s.logger.Info("serving", map[string]string{
		"path": s.rootName + r.URL.Path,
	})
	headers := w.Header()
	headers.Set("Content-Type", s.contentType())
	headers.Set("Access-Control-Allow-Origin", "*")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

func (s *Server) resolve(r *http.Request) (string, bool) {
	if hasRelativeSegment(r.URL.Path) || hasRelativeSegment(r.URL.EscapedPath()) {
		return "", false
	}
	relative := strings.TrimPrefix(r.URL.Path, "/")
	if relative == "" || filepath.Ext(relative) != s.extension {
		return "", false
	}
	fullPath := filepath.Join(s.root, filepath.FromSlash(relative))
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return fullPath, true
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("path not found", map[string]string{
		"path": r.URL.Path,
		"root": s.rootName,
	})
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) contentType() string {
	if s.extension == DefaultExtension {
		return scriptContentType
	}
	if contentType := mime.TypeByExtension(s.extension); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func hasRelativeSegment(requestPath string) bool {
	for _, segment := range strings.FieldsFunc(requestPath, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == "." || segment == ".." {
			return true
		}
	}
	return false
}
