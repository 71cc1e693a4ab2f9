package main

import (
	"context"
	"net"
	"strconv"

	"assetwatch/internal/config"
	"assetwatch/internal/fileserver"
	"assetwatch/internal/logging"
	"assetwatch/internal/metrics"
	"assetwatch/internal/reload"
	"assetwatch/internal/subscription"
)

// app holds both servers and the watch session for one root.
type app struct {
	logger       *logging.Logger
	registry     *metrics.Registry
	hub          *subscription.Hub
	session      *reload.Session
	subscription *subscription.Server
	files        *fileserver.Server
}

func newApp(ctx context.Context, cfg config.Config, root string, logger *logging.Logger) (*app, error) {
	registry := &metrics.Registry{}
	hub := subscription.NewHub(subscription.HubOptions{
		Logger:  logger.Named("subscription"),
		Metrics: registry,
	})

	session, err := reload.WatchDirectory(ctx, root, reload.Options{
		Broadcaster:          hub,
		QuietPeriod:          cfg.QuietPeriod,
		IgnorePatterns:       cfg.IgnorePatterns,
		FollowNewDirectories: cfg.FollowNewDirectories,
		MaxWatches:           cfg.MaxWatches,
		Logger:               logger,
		Metrics:              registry,
	})
	if err != nil {
		hub.Close()
		return nil, err
	}

	return &app{
		logger:   logger,
		registry: registry,
		hub:      hub,
		session:  session,
		subscription: subscription.NewServer(subscription.ServerOptions{
			Hub:            hub,
			Logger:         logger.Named("subscription"),
			Metrics:        registry,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		files: fileserver.New(fileserver.Options{
			Root:      session.Root(),
			Extension: cfg.Extension,
			Logger:    logger.Named("fileserver"),
		}),
	}, nil
}

// serve runs until ctx is cancelled or a server fails, then shuts everything
// down in order. It returns the process exit code.
func (a *app) serve(ctx context.Context, watchListener, fileListener net.Listener) int {
	runner := &ServerRunner{
		Logger:          a.logger,
		ShutdownTimeout: httpServerShutdownTimeout,
	}
	serverErr := runner.Run(ctx,
		ManagedServer{
			Name: "subscription",
			Serve: func() error {
				return a.subscription.Serve(watchListener)
			},
			Shutdown: a.subscription.Shutdown,
		},
		ManagedServer{
			Name: "file",
			Serve: func() error {
				return a.files.Serve(fileListener)
			},
			Shutdown: a.files.Shutdown,
		},
	)

	coordinator := newShutdownCoordinator(a.logger)
	coordinator.Add("watch session", a.stopSession)
	coordinator.Add("summary", a.logSummary)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpServerShutdownTimeout)
	defer cancel()
	shutdownErr := coordinator.Run(shutdownCtx)

	if serverErr != nil || shutdownErr != nil {
		return 1
	}
	return 0
}

func (a *app) stopSession(ctx context.Context) error {
	result := make(chan error, 1)
	go func() {
		result <- a.session.Close()
	}()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) logSummary(context.Context) error {
	broadcasts, _ := a.session.Pipeline().Broadcasts()
	a.logger.Info("assetwatch stopped", map[string]string{
		"root":       a.session.Root(),
		"broadcasts": strconv.Itoa(broadcasts),
		"tracked":    strconv.Itoa(a.session.Index().Len()),
	})
	return nil
}
