package eapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/achocks0/payment-gateway/auth"
	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/forward"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/vault"
)

// Credential and routing headers of the legacy vendor contract.
const (
	HeaderClientID     = "X-Client-ID"
	HeaderClientSecret = "X-Client-Secret"
	HeaderBusinessUnit = "X-Business-Unit"
)

// maxPaymentBody bounds how much of an opaque payment body the gateway
// will buffer before forwarding.
const maxPaymentBody = 1 << 20

// PaymentsHandler authenticates vendor requests and relays them to the
// downstream payment service.
type PaymentsHandler struct {
	auth      *auth.Service
	forwarder *forward.Forwarder
	log       *slog.Logger
}

// NewPaymentsHandler creates the payments handler.
func NewPaymentsHandler(authSvc *auth.Service, forwarder *forward.Forwarder, log *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		auth:      authSvc,
		forwarder: forwarder,
		log:       log.With(logger.Component("eapi.payments")),
	}
}

// Create handles POST /api/v1/payments.
func (h *PaymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	if r.Header.Get(HeaderBusinessUnit) == "" {
		_ = response.Error(w, requestID, response.ErrMissingHeader.WithMessage(
			"required header "+HeaderBusinessUnit+" is missing"))
		return
	}

	tok, err := h.authenticate(r)
	if err != nil {
		_ = response.Error(w, requestID, h.mapAuthError(r, err))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPaymentBody))
	if err != nil {
		_ = response.Error(w, requestID, response.ErrBadRequest.WithMessage("unreadable request body"))
		return
	}

	h.relay(w, r, http.MethodPost, "/internal/v1/payments", body, tok)
}

// Get handles GET /api/v1/payments/{id}.
func (h *PaymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	tok, err := h.authenticate(r)
	if err != nil {
		_ = response.Error(w, requestID, h.mapAuthError(r, err))
		return
	}

	id := chi.URLParam(r, "id")
	h.relay(w, r, http.MethodGet, "/internal/v1/payments/"+id, nil, tok)
}

// authenticate resolves the caller to an internal token: already-migrated
// vendors present a bearer token, legacy vendors present header
// credentials that are exchanged for one.
func (h *PaymentsHandler) authenticate(r *http.Request) (*token.Token, error) {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		bearer = strings.TrimSpace(bearer)
		if bearer == "" || !h.auth.ValidateToken(bearer) {
			return nil, auth.ErrTokenInvalid
		}
		return &token.Token{Value: bearer}, nil
	}

	return h.auth.Authenticate(r.Context(), auth.Headers{
		ClientID:      r.Header.Get(HeaderClientID),
		Secret:        r.Header.Get(HeaderClientSecret),
		CorrelationID: middleware.CorrelationIDFromContext(r.Context()),
	})
}

// relay forwards the request downstream and copies the reply back intact.
func (h *PaymentsHandler) relay(w http.ResponseWriter, r *http.Request, method, path string, body []byte, tok *token.Token) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	resp, err := h.forwarder.Forward(r.Context(), method, path, body, tok, r.Header)
	if err != nil {
		h.log.ErrorContext(r.Context(), "forward failed",
			logger.CorrelationID(requestID), logger.Path(path), logger.Error(err))
		if errors.Is(err, forward.ErrDownstreamUnreachable) {
			_ = response.Error(w, requestID, response.ErrInternal.WithMessage("downstream service unreachable"))
			return
		}
		_ = response.Error(w, requestID, response.ErrInternal)
		return
	}

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// mapAuthError converts authentication failures into the vendor-visible
// error contract. Vault trouble is the only thing distinguished from a
// plain 401 so vendors can tell "retry later" from "fix your secret".
func (h *PaymentsHandler) mapAuthError(r *http.Request, err error) error {
	switch {
	case errors.Is(err, vault.ErrUnavailable):
		return response.ErrVaultUnavailable
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid):
		return response.ErrAuthentication
	default:
		h.log.ErrorContext(r.Context(), "unexpected authentication failure", logger.Error(err))
		return response.ErrInternal
	}
}
