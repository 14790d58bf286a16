package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/pkg/ratelimiter"
)

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	t.Run("inbound id is propagated", func(t *testing.T) {
		t.Parallel()

		var seen string
		h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.CorrelationIDFromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(middleware.CorrelationHeader, "corr-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "corr-123", seen)
		assert.Equal(t, "corr-123", rec.Header().Get(middleware.CorrelationHeader))
	})

	t.Run("missing id is generated", func(t *testing.T) {
		t.Parallel()

		var seen string
		h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.CorrelationIDFromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		require.NotEmpty(t, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(middleware.CorrelationHeader))
	})

	t.Run("hostile id is sanitized", func(t *testing.T) {
		t.Parallel()

		var seen string
		h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.CorrelationIDFromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(middleware.CorrelationHeader, "abc\r\ndef")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abcdef", seen)
	})
}

func TestLogging(t *testing.T) {
	t.Parallel()

	t.Run("logs method path status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		h := middleware.Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/payments", nil))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "POST", line["method"])
		assert.Equal(t, "/api/v1/payments", line["path"])
		assert.Equal(t, float64(http.StatusCreated), line["status_code"])
	})

	t.Run("secret headers never reach the log", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		h := middleware.Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Client-Secret", "super-secret-value")
		req.Header.Set("Authorization", "Bearer signed-token")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotContains(t, buf.String(), "super-secret-value")
		assert.NotContains(t, buf.String(), "signed-token")
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := middleware.CorrelationID(middleware.Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.ErrorCode)
	assert.NotEmpty(t, body.RequestID)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	newLimiter := func(t *testing.T, capacity int) ratelimiter.RateLimiter {
		t.Helper()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreClock(clockwork.NewFakeClock()))
		limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
			Capacity:       capacity,
			RefillRate:     capacity,
			RefillInterval: time.Minute,
		})
		require.NoError(t, err)
		return limiter
	}

	t.Run("over the limit returns 429 with retry-after", func(t *testing.T) {
		t.Parallel()

		h := middleware.RateLimit(newLimiter(t, 2), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		makeReq := func() *http.Request {
			req := httptest.NewRequest("POST", "/api/v1/payments", nil)
			req.Header.Set("X-Client-ID", "vendor-a")
			req.RemoteAddr = "10.0.0.1:4242"
			return req
		}

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, makeReq())
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, makeReq())
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body response.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "RATE_LIMITED", body.ErrorCode)
	})

	t.Run("different clients have separate budgets", func(t *testing.T) {
		t.Parallel()

		h := middleware.RateLimit(newLimiter(t, 1), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		reqA := httptest.NewRequest("GET", "/", nil)
		reqA.Header.Set("X-Client-ID", "vendor-a")
		reqA.RemoteAddr = "10.0.0.1:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, reqA)
		require.Equal(t, http.StatusOK, rec.Code)

		reqB := httptest.NewRequest("GET", "/", nil)
		reqB.Header.Set("X-Client-ID", "vendor-b")
		reqB.RemoteAddr = "10.0.0.1:1"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, reqB)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
