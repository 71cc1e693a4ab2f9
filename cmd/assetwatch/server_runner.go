package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"assetwatch/internal/logging"
)

// ManagedServer is one listener-backed server the runner starts and stops.
type ManagedServer struct {
	Name     string
	Serve    func() error
	Shutdown func(context.Context) error
}

type ServerRunner struct {
	Logger          *logging.Logger
	ShutdownTimeout time.Duration
}

type serverError struct {
	name string
	err  error
}

func (e *serverError) Error() string {
	return e.name + " server: " + e.err.Error()
}

// Run serves every server until stop is done or one of them returns, then
// shuts all of them down. A server that returned on its own is reported.
func (runner *ServerRunner) Run(stop context.Context, servers ...ManagedServer) *serverError {
	started := 0
	results := make(chan serverError, len(servers))
	for _, server := range servers {
		if server.Serve == nil {
			continue
		}
		started++
		go func() {
			results <- serverError{name: server.Name, err: server.Serve()}
		}()
	}
	if started == 0 {
		return nil
	}

	var initial *serverError
	select {
	case result := <-results:
		if result.err != nil && !errors.Is(result.err, http.ErrServerClosed) {
			initial = &result
		}
		runner.logServerExit(result, true)
		started--
	case <-stop.Done():
	}

	timeout := runner.ShutdownTimeout
	if timeout <= 0 {
		timeout = httpServerShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, server := range servers {
		if server.Shutdown == nil {
			continue
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			runner.Logger.Warn("server shutdown failed", map[string]string{
				"server": server.Name,
				"error":  err.Error(),
			})
		}
	}

	for ; started > 0; started-- {
		select {
		case result := <-results:
			runner.logServerExit(result, false)
		case <-time.After(timeout):
			return initial
		}
	}
	return initial
}

func (runner *ServerRunner) logServerExit(result serverError, unexpected bool) {
	if result.err != nil && !errors.Is(result.err, http.ErrServerClosed) {
		runner.Logger.Error("server stopped", map[string]string{
			"server": result.name,
			"error":  result.err.Error(),
		})
		return
	}
	if unexpected {
		runner.Logger.Warn("server stopped without being asked", map[string]string{
			"server": result.name,
		})
	}
}
