package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// SubscriptionService edits a user's subscriptions.
type SubscriptionService interface {
	Subscribe(ctx context.Context, userID string, target domain.SubscriptionTarget) error
	Unsubscribe(ctx context.Context, userID string, target domain.SubscriptionTarget) error
}

type SubscriptionHandler struct {
	Service SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(service SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{Service: service}
}

type subscriptionRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"` // subscribe or unsubscribe
	Kind   string `json:"kind"`
	ID     string `json:"id"`
}

// HandleEdit serves POST /api/subscriptions.
func (h *SubscriptionHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	target, err := domain.ParseTarget(req.Kind, req.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "subscribe", "":
		err = h.Service.Subscribe(r.Context(), req.UserID, target)
	case "unsubscribe":
		err = h.Service.Unsubscribe(r.Context(), req.UserID, target)
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "kind": string(target.Kind()), "id": target.ID()})
}
