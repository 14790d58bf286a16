package eapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/rotation"
	"github.com/achocks0/payment-gateway/vault"
)

// RotationsHandler is the operator-scoped rotation control surface. It is
// mounted on the gateway but must not be exposed to external vendors.
type RotationsHandler struct {
	manager *rotation.Manager
	log     *slog.Logger
}

// NewRotationsHandler creates the rotation control handler.
func NewRotationsHandler(manager *rotation.Manager, log *slog.Logger) *RotationsHandler {
	return &RotationsHandler{
		manager: manager,
		log:     log.With(logger.Component("eapi.rotations")),
	}
}

// InitiateRequest is the POST /rotations/initiate body.
type InitiateRequest struct {
	ClientID                string `json:"clientId"`
	Reason                  string `json:"reason"`
	TransitionPeriodMinutes int    `json:"transitionPeriodMinutes,omitempty"`
	ForceRotation           bool   `json:"forceRotation,omitempty"`
}

// RotationResponse is the wire form of a rotation. NewClientSecret is set
// only on the initiation response; the secret is never retrievable again.
type RotationResponse struct {
	RotationID              string    `json:"rotationId"`
	ClientID                string    `json:"clientId"`
	CurrentState            string    `json:"currentState"`
	TargetState             string    `json:"targetState"`
	OldVersion              int       `json:"oldVersion"`
	NewVersion              int       `json:"newVersion"`
	TransitionPeriodMinutes int       `json:"transitionPeriodMinutes"`
	Reason                  string    `json:"reason,omitempty"`
	StartedAt               time.Time `json:"startedAt"`
	CompletedAt             time.Time `json:"completedAt,omitzero"`
	Success                 bool      `json:"success"`
	Message                 string    `json:"message,omitempty"`
	NewClientSecret         string    `json:"newClientSecret,omitempty"`
}

func rotationResponse(rot *rotation.Rotation) RotationResponse {
	return RotationResponse{
		RotationID:              rot.RotationID,
		ClientID:                rot.ClientID,
		CurrentState:            string(rot.CurrentState),
		TargetState:             string(rot.TargetState),
		OldVersion:              rot.OldVersion,
		NewVersion:              rot.NewVersion,
		TransitionPeriodMinutes: int(rot.TransitionPeriod / time.Minute),
		Reason:                  rot.Reason,
		StartedAt:               rot.StartedAt,
		CompletedAt:             rot.CompletedAt,
		Success:                 rot.Success,
		Message:                 rot.Message,
	}
}

// Initiate handles POST /api/v1/rotations/initiate.
func (h *RotationsHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = response.Error(w, requestID, response.ErrBadRequest.WithMessage("invalid JSON body"))
		return
	}
	if req.ClientID == "" {
		_ = response.Error(w, requestID, response.ErrBadRequest.WithMessage("clientId is required"))
		return
	}

	rot, newSecret, err := h.manager.Initiate(r.Context(), rotation.InitiateRequest{
		ClientID:         req.ClientID,
		Reason:           req.Reason,
		TransitionPeriod: time.Duration(req.TransitionPeriodMinutes) * time.Minute,
		Force:            req.ForceRotation,
	})
	if err != nil {
		_ = response.Error(w, requestID, h.mapError(r, err))
		return
	}

	body := rotationResponse(rot)
	body.NewClientSecret = newSecret
	_ = response.JSON(w, http.StatusCreated, body)
}

// Get handles GET /api/v1/rotations/{id}.
func (h *RotationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	rot, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		_ = response.Error(w, requestID, h.mapError(r, err))
		return
	}
	_ = response.JSON(w, http.StatusOK, rotationResponse(rot))
}

// ByClient handles GET /api/v1/rotations/client/{clientId}.
func (h *RotationsHandler) ByClient(w http.ResponseWriter, r *http.Request) {
	rots := h.manager.ByClient(chi.URLParam(r, "clientId"))
	out := make([]RotationResponse, 0, len(rots))
	for i := range rots {
		out = append(out, rotationResponse(&rots[i]))
	}
	_ = response.JSON(w, http.StatusOK, out)
}

// Active handles GET /api/v1/rotations/active.
func (h *RotationsHandler) Active(w http.ResponseWriter, r *http.Request) {
	rots := h.manager.Active()
	out := make([]RotationResponse, 0, len(rots))
	for i := range rots {
		out = append(out, rotationResponse(&rots[i]))
	}
	_ = response.JSON(w, http.StatusOK, out)
}

// Advance handles PUT /api/v1/rotations/{id}/advance?targetState=...
func (h *RotationsHandler) Advance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	target := rotation.State(r.URL.Query().Get("targetState"))
	if target == "" {
		_ = response.Error(w, requestID, response.ErrBadRequest.WithMessage("targetState query parameter is required"))
		return
	}

	rot, err := h.manager.Advance(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		_ = response.Error(w, requestID, h.mapError(r, err))
		return
	}
	_ = response.JSON(w, http.StatusOK, rotationResponse(rot))
}

// Complete handles PUT /api/v1/rotations/{id}/complete.
func (h *RotationsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	rot, err := h.manager.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		_ = response.Error(w, requestID, h.mapError(r, err))
		return
	}
	_ = response.JSON(w, http.StatusOK, rotationResponse(rot))
}

// Cancel handles DELETE /api/v1/rotations/{id}?reason=...
func (h *RotationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.CorrelationIDFromContext(r.Context())

	rot, err := h.manager.Cancel(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("reason"))
	if err != nil {
		_ = response.Error(w, requestID, h.mapError(r, err))
		return
	}
	_ = response.JSON(w, http.StatusOK, rotationResponse(rot))
}

func (h *RotationsHandler) mapError(r *http.Request, err error) error {
	switch {
	case errors.Is(err, rotation.ErrNotFound), errors.Is(err, rotation.ErrUnknownClient):
		return response.ErrNotFound
	case errors.Is(err, rotation.ErrConflict):
		return response.ErrRotationConflict
	case errors.Is(err, rotation.ErrInvalidTransition), errors.Is(err, rotation.ErrTerminal):
		return response.ErrInvalidTransition
	case errors.Is(err, vault.ErrUnavailable):
		return response.ErrVaultUnavailable
	default:
		h.log.ErrorContext(r.Context(), "rotation operation failed", logger.Error(err))
		return response.ErrInternal
	}
}
