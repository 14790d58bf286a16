package forward

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/token"
)

// ErrDownstreamUnreachable is returned when the downstream service cannot
// be reached at all; HTTP responses of any status are not errors.
var ErrDownstreamUnreachable = errors.New("downstream unreachable")

// Config holds downstream connectivity settings with environment variable
// support.
type Config struct {
	BaseURL string        `env:"DOWNSTREAM_BASE_URL" envDefault:"http://localhost:8081"`
	Timeout time.Duration `env:"DOWNSTREAM_TIMEOUT" envDefault:"10s"`
}

// Refresher exchanges a token rejected downstream for a fresh one. The
// authentication service satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, oldToken string) (*token.Token, error)
}

// Response is a downstream reply: status, filtered headers, and the body
// as opaque bytes.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder relays payment requests to the downstream service with a
// bearer token attached and the correlation id propagated. A downstream
// 401 triggers exactly one token refresh and one retry; every other
// status passes through untouched.
type Forwarder struct {
	client    *http.Client
	baseURL   string
	refresher Refresher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New creates a forwarder. The refresher is optional; without it a
// downstream 401 passes through like any other status.
func New(cfg Config, refresher Refresher, m *metrics.Metrics, log *slog.Logger) *Forwarder {
	return &Forwarder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		refresher: refresher,
		metrics:   m,
		log:       log,
	}
}

// Forward relays one request. The body is never inspected; extra headers
// are copied after hop-by-hop and credential headers are dropped.
func (f *Forwarder) Forward(ctx context.Context, method, path string, body []byte, tok *token.Token, extra http.Header) (*Response, error) {
	correlationID := middleware.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	resp, err := f.send(ctx, method, path, body, tok.Value, correlationID, extra)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && f.refresher != nil {
		refreshed, refreshErr := f.refresher.Refresh(ctx, tok.Value)
		if refreshErr != nil {
			f.log.WarnContext(ctx, "token refresh after downstream 401 failed",
				logger.ClientID(tok.ClientID), logger.CorrelationID(correlationID), logger.Error(refreshErr))
			f.metrics.Forwarded(resp.StatusCode)
			return resp, nil
		}
		resp, err = f.send(ctx, method, path, body, refreshed.Value, correlationID, extra)
		if err != nil {
			return nil, err
		}
	}

	f.metrics.Forwarded(resp.StatusCode)
	return resp, nil
}

func (f *Forwarder) send(ctx context.Context, method, path string, body []byte, bearer, correlationID string, extra http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return nil, errors.Join(ErrDownstreamUnreachable, err)
	}

	for name, values := range extra {
		if skipHeader(name) {
			continue
		}
		req.Header[http.CanonicalHeaderKey(name)] = values
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set(middleware.CorrelationHeader, correlationID)

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrDownstreamUnreachable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Join(ErrDownstreamUnreachable, err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     filterHeaders(httpResp.Header),
		Body:       respBody,
	}, nil
}

// Healthcheck probes downstream liveness without credentials. Any HTTP
// response counts as reachable.
func (f *Forwarder) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/internal/v1/health/liveness", nil)
	if err != nil {
		return errors.Join(ErrDownstreamUnreachable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Join(ErrDownstreamUnreachable, err)
	}
	_ = resp.Body.Close()
	return nil
}

// skipHeader reports whether an inbound header must not cross the gateway:
// hop-by-hop headers and the legacy credential headers.
func skipHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade",
		"Authorization", "X-Client-Id", "X-Client-Secret", "X-Correlation-Id":
		return true
	}
	return false
}

func filterHeaders(h http.Header) http.Header {
	filtered := make(http.Header, len(h))
	for name, values := range h {
		if skipHeader(name) {
			continue
		}
		filtered[name] = values
	}
	return filtered
}
