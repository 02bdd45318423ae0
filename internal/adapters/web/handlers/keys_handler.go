package handlers

import (
	"context"
	"net/http"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/mux"
)

// KeyService expands users and categories into match-keys.
type KeyService interface {
	UserKeys(ctx context.Context, userID string) (mapset.Set[string], error)
	CategoryKeys(ctx context.Context, name string) (mapset.Set[string], error)
}

// KeysHandler exposes match-key expansion for debugging subscriptions.
type KeysHandler struct {
	Service KeyService
}

// NewKeysHandler creates a new KeysHandler
func NewKeysHandler(service KeyService) *KeysHandler {
	return &KeysHandler{Service: service}
}

type keysResponse struct {
	Subject string   `json:"subject"`
	Keys    []string `json:"keys"`
}

// HandleUserKeys returns GET /api/users/{id}/keys.
func (h *KeysHandler) HandleUserKeys(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	keys, err := h.Service.UserKeys(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{Subject: "user:" + id, Keys: sortedKeys(keys)})
}

// HandleCategoryKeys returns GET /api/categories/{name}/keys.
func (h *KeysHandler) HandleCategoryKeys(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	keys, err := h.Service.CategoryKeys(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{Subject: "category:" + name, Keys: sortedKeys(keys)})
}

func sortedKeys(s mapset.Set[string]) []string {
	if s == nil {
		return []string{}
	}
	keys := s.ToSlice()
	sort.Strings(keys)
	return keys
}
