package forward_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/forward"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/token"
)

type fakeRefresher struct {
	calls atomic.Int64
	next  *token.Token
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*token.Token, error) {
	f.calls.Add(1)
	return f.next, f.err
}

func makeToken(value string) *token.Token {
	return &token.Token{
		ClientID:  "vendor-a",
		Value:     value,
		JTI:       "jti-" + value,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newForwarder(t *testing.T, handler http.Handler, refresher forward.Refresher) *forward.Forwarder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := forward.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}
	return forward.New(cfg, refresher, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestForwarder_Forward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("attaches bearer and propagates correlation id", func(t *testing.T) {
		t.Parallel()

		var gotAuth, gotCorrelation string
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotCorrelation = r.Header.Get(middleware.CorrelationHeader)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"accepted"}`))
		}), nil)

		ctx := middleware.WithCorrelationID(ctx, "corr-42")
		resp, err := f.Forward(ctx, http.MethodPost, "/internal/v1/payments", []byte(`{"amount":10}`), makeToken("tok-1"), nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Bearer tok-1", gotAuth)
		assert.Equal(t, "corr-42", gotCorrelation)
		assert.JSONEq(t, `{"status":"accepted"}`, string(resp.Body))
	})

	t.Run("generates correlation id when context carries none", func(t *testing.T) {
		t.Parallel()

		var gotCorrelation string
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCorrelation = r.Header.Get(middleware.CorrelationHeader)
		}), nil)

		_, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-1"), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, gotCorrelation)
	})

	t.Run("body and downstream status pass through opaquely", func(t *testing.T) {
		t.Parallel()

		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write(body)
		}), nil)

		resp, err := f.Forward(ctx, http.MethodPost, "/internal/v1/payments", []byte("opaque-payload"), makeToken("tok-1"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "opaque-payload", string(resp.Body))
	})

	t.Run("credential headers never cross the gateway", func(t *testing.T) {
		t.Parallel()

		var gotSecret, gotBusiness string
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSecret = r.Header.Get("X-Client-Secret")
			gotBusiness = r.Header.Get("X-Business-Unit")
		}), nil)

		extra := http.Header{}
		extra.Set("X-Client-Secret", "s3cret")
		extra.Set("X-Business-Unit", "retail")

		_, err := f.Forward(ctx, http.MethodPost, "/internal/v1/payments", nil, makeToken("tok-1"), extra)
		require.NoError(t, err)
		assert.Empty(t, gotSecret)
		assert.Equal(t, "retail", gotBusiness)
	})

	t.Run("downstream unreachable", func(t *testing.T) {
		t.Parallel()

		cfg := forward.Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}
		f := forward.New(cfg, nil, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-1"), nil)
		require.ErrorIs(t, err, forward.ErrDownstreamUnreachable)
	})
}

func TestForwarder_RefreshOn401(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("one refresh and one retry", func(t *testing.T) {
		t.Parallel()

		refresher := &fakeRefresher{next: makeToken("tok-fresh")}
		var requests atomic.Int64
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.Header.Get("Authorization") == "Bearer tok-fresh" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}), refresher)

		resp, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-stale"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(1), refresher.calls.Load())
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("second 401 passes through without another refresh", func(t *testing.T) {
		t.Parallel()

		refresher := &fakeRefresher{next: makeToken("tok-fresh")}
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), refresher)

		resp, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-stale"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, int64(1), refresher.calls.Load())
	})

	t.Run("refresh failure surfaces the original 401", func(t *testing.T) {
		t.Parallel()

		refresher := &fakeRefresher{err: context.DeadlineExceeded}
		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), refresher)

		resp, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-stale"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("no refresher means 401 passes through", func(t *testing.T) {
		t.Parallel()

		f := newForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), nil)

		resp, err := f.Forward(ctx, http.MethodGet, "/internal/v1/payments/1", nil, makeToken("tok-stale"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
