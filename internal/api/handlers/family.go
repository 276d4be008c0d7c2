package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/sproutmind/sprout/internal/api/middleware"
	"github.com/sproutmind/sprout/internal/domain"
)

type FamilyHandler struct {
	store domain.FamilyStore
}

func NewFamilyHandler(store domain.FamilyStore) *FamilyHandler {
	return &FamilyHandler{store: store}
}

type createFamilyRequest struct {
	Name string `json:"name"`
}

type createFamilyResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	family := &domain.Family{
		Name:       req.Name,
		APIKeyHash: middleware.HashAPIKey(apiKey),
	}

	if err := h.store.Create(r.Context(), family); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	writeJSON(w, http.StatusCreated, createFamilyResponse{
		ID:     family.ID.String(),
		Name:   family.Name,
		APIKey: apiKey,
	})
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sk_" + hex.EncodeToString(b), nil
}
