package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateServerCopiesTimeouts(t *testing.T) {
	cfg := DefaultConfig(":0")
	srv := CreateServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, cfg.ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, srv.WriteTimeout)
	assert.Equal(t, cfg.IdleTimeout, srv.IdleTimeout)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1:0")
	cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, CreateServer(cfg, http.NotFoundHandler())) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReportsListenError(t *testing.T) {
	cfg := DefaultConfig("256.0.0.1:bad")
	err := Run(context.Background(), cfg, CreateServer(cfg, http.NotFoundHandler()))
	require.Error(t, err)
}
