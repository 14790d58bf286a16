package notify

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/achocks0/payment-gateway/pkg/crypto"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the request
// body, keyed with the webhook secret.
const SignatureHeader = "X-Webhook-Signature"

// WebhookTransport delivers events as signed JSON POST requests.
type WebhookTransport struct {
	url        string
	secret     []byte
	client     *http.Client
	maxRetries uint64
}

// WebhookOption configures a WebhookTransport.
type WebhookOption func(*WebhookTransport)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(t *WebhookTransport) { t.client = client }
}

// WithMaxRetries sets how many times a failed delivery is retried.
func WithMaxRetries(n uint64) WebhookOption {
	return func(t *WebhookTransport) { t.maxRetries = n }
}

// NewWebhookTransport creates a transport posting to url, signing each
// payload with secret.
func NewWebhookTransport(url, secret string, opts ...WebhookOption) *WebhookTransport {
	t := &WebhookTransport{
		url:        url,
		secret:     []byte(secret),
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the event, retrying transient failures with exponential
// backoff. A 4xx response is not retried.
func (t *WebhookTransport) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	signature := hex.EncodeToString(crypto.HMACSign(body, t.secret))

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.maxRetries), ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SignatureHeader, signature)

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("webhook rejected: status %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook failed: status %d", resp.StatusCode)
		}
	}, policy)
}

// ChannelTransport delivers events into an in-process channel, mainly
// for tests and embedded consumers.
type ChannelTransport struct {
	ch chan Event
}

// NewChannelTransport creates a channel transport with the given buffer.
func NewChannelTransport(bufferSize int) *ChannelTransport {
	if bufferSize < 1 {
		bufferSize = 16
	}
	return &ChannelTransport{ch: make(chan Event, bufferSize)}
}

// Send places the event on the channel, failing when the buffer is full.
func (t *ChannelTransport) Send(_ context.Context, event Event) error {
	select {
	case t.ch <- event:
		return nil
	default:
		return fmt.Errorf("channel transport: buffer full")
	}
}

// Events returns the receive side of the channel.
func (t *ChannelTransport) Events() <-chan Event {
	return t.ch
}
