package server_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/core/server"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	for range 50 {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			require.NoError(t, conn.Close())
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never came up", addr)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start serves and stop shuts down", func(t *testing.T) {
		t.Parallel()

		addr := freeAddr(t)
		srv := server.New(addr)
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- srv.Start(ctx, handler) }()

		waitForServer(t, addr)
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, srv.Stop())
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("start did not return after cancel")
		}
	})

	t.Run("second start fails", func(t *testing.T) {
		t.Parallel()

		addr := freeAddr(t)
		srv := server.New(addr)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = srv.Start(ctx, http.NotFoundHandler()) }()
		waitForServer(t, addr)

		err := srv.Start(ctx, http.NotFoundHandler())
		assert.ErrorIs(t, err, server.ErrServerAlreadyRunning)
		require.NoError(t, srv.Stop())
	})

	t.Run("stop on idle server is a no-op", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, server.New(freeAddr(t)).Stop())
	})

	t.Run("run returns nil on context cancel", func(t *testing.T) {
		t.Parallel()

		addr := freeAddr(t)
		srv := server.New(addr)
		ctx, cancel := context.WithCancel(context.Background())
		run := srv.Run(ctx, http.NotFoundHandler())

		done := make(chan error, 1)
		go func() { done <- run() }()
		waitForServer(t, addr)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires address", func(t *testing.T) {
		t.Parallel()
		_, err := server.NewFromConfig(server.Config{})
		assert.ErrorIs(t, err, server.ErrMissingAddress)
	})

	t.Run("builds server from defaults", func(t *testing.T) {
		t.Parallel()
		srv, err := server.NewFromConfig(server.DefaultConfig())
		require.NoError(t, err)
		assert.NotNil(t, srv)
	})
}
