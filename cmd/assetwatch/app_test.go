package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assetwatch/internal/config"
	"assetwatch/internal/logging"

	"github.com/gorilla/websocket"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return listener
}

func TestAppServesAndNotifies(t *testing.T) {
	root := t.TempDir()
	script := filepath.Join(root, "widget.js")
	if err := os.WriteFile(script, []byte("one"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := config.Defaults()
	cfg.QuietPeriod = 50 * time.Millisecond
	logger := logging.NewLoggerWithOutput(logging.NewBuffer(100), logging.LevelDebug, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := newApp(ctx, cfg, root, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	watchListener := listen(t)
	fileListener := listen(t)
	exitCode := make(chan int, 1)
	go func() {
		exitCode <- application.serve(ctx, watchListener, fileListener)
	}()

	resp, err := http.Get("http://" + fileListener.Addr().String() + "/widget.js")
	if err != nil {
		t.Fatalf("get script: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "one" {
		t.Fatalf("unexpected script response %d %q", resp.StatusCode, body)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+watchListener.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for application.hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(script, []byte("two"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(message) != "rerender" {
		t.Fatalf("expected rerender, got %q", message)
	}

	cancel()
	select {
	case code := <-exitCode:
		if code != 0 {
			t.Fatalf("expected clean exit, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for shutdown")
	}

	var stopped bool
	for _, entry := range logger.Buffer().List() {
		if entry.Message == "assetwatch stopped" {
			stopped = true
		}
	}
	if !stopped {
		t.Fatalf("expected shutdown summary to be logged")
	}
}

func TestRunPrintsVersion(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"--version"}, strings.NewReader(""), &out); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out.String(), "assetwatch ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	stderr := os.Stderr
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	os.Stderr = devNull
	t.Cleanup(func() {
		os.Stderr = stderr
		_ = devNull.Close()
	})

	if code := run([]string{"--watch-port", "0"}, strings.NewReader(""), io.Discard); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
