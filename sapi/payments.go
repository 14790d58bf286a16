package sapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/verifier"
)

// Payment is the reference service's view of a processed payment. The
// gateway treats payment bodies as opaque; this shape exists only so the
// reference downstream has something real to store and return.
type Payment struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"clientId"`
	Status      string          `json:"status"`
	Body        json.RawMessage `json:"body,omitempty"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// PaymentsHandler is the reference downstream payment service: it accepts
// already-verified internal requests and records payments in memory.
type PaymentsHandler struct {
	log *slog.Logger

	mu       sync.RWMutex
	payments map[string]Payment
}

// NewPaymentsHandler creates the reference payments handler.
func NewPaymentsHandler(log *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		log:      log.With(logger.Component("sapi.payments")),
		payments: make(map[string]Payment),
	}
}

// Create handles POST /internal/v1/payments.
func (h *PaymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	claims, ok := verifier.ClaimsFromContext(r.Context())
	if !ok {
		_ = response.Error(w, requestID, response.ErrAuthentication)
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = response.Error(w, requestID, response.ErrBadRequest.WithMessage("invalid JSON body"))
		return
	}

	payment := Payment{
		ID:          uuid.NewString(),
		ClientID:    claims.Subject,
		Status:      "accepted",
		Body:        body,
		ProcessedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	h.payments[payment.ID] = payment
	h.mu.Unlock()

	h.log.InfoContext(r.Context(), "payment accepted",
		logger.ClientID(claims.Subject),
		logger.CorrelationID(requestID),
		slog.String("payment_id", payment.ID))
	_ = response.JSON(w, http.StatusCreated, payment)
}

// Get handles GET /internal/v1/payments/{id}.
func (h *PaymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	claims, ok := verifier.ClaimsFromContext(r.Context())
	if !ok {
		_ = response.Error(w, requestID, response.ErrAuthentication)
		return
	}

	h.mu.RLock()
	payment, found := h.payments[chi.URLParam(r, "id")]
	h.mu.RUnlock()

	// Payments are scoped to the minting client; another client's id is
	// indistinguishable from an absent one.
	if !found || payment.ClientID != claims.Subject {
		_ = response.Error(w, requestID, response.ErrNotFound)
		return
	}
	_ = response.JSON(w, http.StatusOK, payment)
}
