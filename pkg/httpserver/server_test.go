package httpserver_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/togglekit/pkg/httpserver"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("ServesUntilCanceled", func(t *testing.T) {
		t.Parallel()

		addr := freeAddr(t)
		var logs bytes.Buffer
		srv := httpserver.New(
			httpserver.WithAddr(addr),
			httpserver.WithShutdownTimeout(100*time.Millisecond),
			httpserver.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))
		}()

		var (
			resp *http.Response
			err  error
		)
		for range 50 {
			if resp, err = http.Get("http://" + addr); err == nil {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)

		cancel()
		waitDone(t, done)
		assert.Contains(t, logs.String(), "http server started")
		assert.Contains(t, logs.String(), "http server stopped")
	})

	t.Run("StartError", func(t *testing.T) {
		t.Parallel()

		srv := httpserver.New(httpserver.WithAddr(":invalid"))
		err := srv.Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		srv := httpserver.New(
			httpserver.WithAddr(freeAddr(t)),
			httpserver.WithShutdownTimeout(50*time.Millisecond),
			httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
		)
		done := make(chan error, 1)
		go func() { done <- srv.Run(context.Background(), nil) }()
		<-started

		err := srv.Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

		require.NoError(t, srv.Shutdown(context.Background()))
		waitDone(t, done)
	})

	t.Run("HooksAndRepeatedShutdown", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		stopped := make(chan struct{})
		srv := httpserver.New(
			httpserver.WithAddr(freeAddr(t)),
			httpserver.WithShutdownTimeout(50*time.Millisecond),
			httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
			httpserver.WithStopHook(func(*slog.Logger) { close(stopped) }),
		)
		done := make(chan error, 1)
		go func() { done <- srv.Run(context.Background(), http.NewServeMux()) }()
		<-started

		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, srv.Shutdown(context.Background()))
		waitDone(t, done)

		select {
		case <-stopped:
		default:
			assert.Fail(t, "stop hook not executed")
		}
	})

	t.Run("ShutdownBeforeRun", func(t *testing.T) {
		t.Parallel()

		srv := httpserver.New()
		assert.NoError(t, srv.Shutdown(context.Background()))
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httpserver.NewFromConfig(httpserver.Config{
		Addr:            freeAddr(t),
		ReadTimeout:     time.Second,
		ShutdownTimeout: 50 * time.Millisecond,
	}, httpserver.WithStartHook(func(*slog.Logger) { close(started) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()
	<-started
	cancel()
	waitDone(t, done)
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpserver.WithAddr("") })
	assert.Panics(t, func() { httpserver.WithStartHook(nil) })
	assert.Panics(t, func() { httpserver.WithStopHook(nil) })
	assert.NotPanics(t, func() { httpserver.WithLogger(nil) })
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	probe := func(h http.Handler) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	t.Run("Liveness", func(t *testing.T) {
		t.Parallel()

		rec := probe(httpserver.HealthCheckHandler(nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("Ready", func(t *testing.T) {
		t.Parallel()

		ok := func(context.Context) error { return nil }
		rec := probe(httpserver.HealthCheckHandler(nil, ok, ok))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("NotReady", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		failing := func(context.Context) error { return errors.New("redis down") }
		rec := probe(httpserver.HealthCheckHandler(slog.New(slog.NewJSONHandler(&logs, nil)), failing))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
		assert.Contains(t, logs.String(), "redis down")
	})
}
