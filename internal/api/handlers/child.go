package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/api/middleware"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
)

type ChildHandler struct {
	store domain.ChildStore
}

func NewChildHandler(store domain.ChildStore) *ChildHandler {
	return &ChildHandler{store: store}
}

type createChildRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	child := &domain.Child{
		FamilyID: family.ID,
		Name:     req.Name,
	}
	if req.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid birth_date, expected YYYY-MM-DD")
			return
		}
		child.BirthDate = &bd
	}

	if err := h.store.Create(r.Context(), child); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	child, err := h.store.GetByID(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "child not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}

	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	children, err := h.store.ListByFamily(r.Context(), family.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []domain.Child{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"children": children,
		"count":    len(children),
	})
}
