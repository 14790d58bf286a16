package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()

	m.AuthAttempt("vendor-a", true, false, 5*time.Millisecond)
	m.AuthAttempt("vendor-a", false, false, time.Millisecond)
	m.AuthAttempt("vendor-a", true, true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("vendor-a", "true", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("vendor-a", "false", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("vendor-a", "true", "true")))

	m.TokenValidation(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("false")))

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))

	m.RotationTransition("dual_active", "old_deprecated")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("dual_active", "old_deprecated")))

	m.Forwarded(200)
	m.Forwarded(502)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forwarded.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forwarded.WithLabelValues("5xx")))

	m.VaultAvailable(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vaultUp))
	m.VaultAvailable(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.vaultUp))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthAttempt("vendor-a", true, false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_attempts_total")
	assert.Contains(t, rec.Body.String(), "authentication_duration_seconds")
}
