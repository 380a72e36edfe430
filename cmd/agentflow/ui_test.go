package main

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/internal/config"
)

func testLoggerConfig() config.Config {
	return config.Config{LogLevel: "error"}
}

// freePort asks the OS for an unused TCP port, then releases it so
// runUntilCancelled/httpReady can bind it themselves.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestHTTPReady_FailsWhenNothingListening(t *testing.T) {
	port := freePort(t)
	err := httpReady(port, "/health")(context.Background())
	assert.Error(t, err)
}

func TestHTTPReady_SucceedsOnceHandlerResponds(t *testing.T) {
	port := freePort(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runUntilCancelled(ctx, mux, port, newLogger(testLoggerConfig()), "test")
	}()

	waitForReady(t, port)
	assert.NoError(t, httpReady(port, "/health")(context.Background()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runUntilCancelled did not shut down in time")
	}
}

func waitForReady(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := httpReady(port, "/health")(context.Background()); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server on port %s never became ready", strconv.Itoa(port))
}
