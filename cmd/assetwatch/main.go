package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetwatch/internal/config"
	"assetwatch/internal/logging"
	"assetwatch/internal/prompt"
	"assetwatch/internal/version"
)

const httpServerShutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version.Get().String())
		return 0
	}

	logger := logging.NewLogger(logging.NewBuffer(logging.DefaultBufferSize), cfg.EffectiveLogLevel())
	logger.Info("assetwatch starting", version.Get().Fields())
	config.LogStartup(logger, cfg)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignalWatcher := watchShutdownSignals(logger, shutdownCancel, signalCh)
	defer stopSignalWatcher()

	root, err := prompt.New(stdin, stdout, logger.Named("prompt")).Resolve(shutdownCtx, cfg.Root)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		logger.Error("no directory to watch", map[string]string{
			"error": err.Error(),
		})
		return 1
	}

	watchListener, err := net.Listen("tcp", cfg.WatchAddr())
	if err != nil {
		logger.Error("subscription listener failed", map[string]string{
			"addr":  cfg.WatchAddr(),
			"error": err.Error(),
		})
		return 1
	}
	fileListener, err := net.Listen("tcp", cfg.FileAddr())
	if err != nil {
		_ = watchListener.Close()
		logger.Error("file listener failed", map[string]string{
			"addr":  cfg.FileAddr(),
			"error": err.Error(),
		})
		return 1
	}

	application, err := newApp(shutdownCtx, cfg, root, logger)
	if err != nil {
		_ = watchListener.Close()
		_ = fileListener.Close()
		logger.Error("watch setup failed", map[string]string{
			"root":  root,
			"error": err.Error(),
		})
		return 1
	}
	return application.serve(shutdownCtx, watchListener, fileListener)
}
