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
	"github.com/sproutmind/sprout/internal/service"
	"github.com/sproutmind/sprout/internal/store"
)

type FactHandler struct {
	svc *service.FactService
}

func NewFactHandler(svc *service.FactService) *FactHandler {
	return &FactHandler{svc: svc}
}

type assertFactRequest struct {
	Predicate   string  `json:"predicate"`
	Object      string  `json:"object"`
	Aspect      string  `json:"aspect,omitempty"`
	Description string  `json:"description,omitempty"`
	Confidence  float32 `json:"confidence,omitempty"`
	SourceID    string  `json:"source_id,omitempty"`
	ValidFrom   string  `json:"valid_from,omitempty"`
}

func (h *FactHandler) Assert(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	childID, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	var req assertFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := service.AssertFactInput{
		ChildID:     childID,
		FamilyID:    family.ID,
		Predicate:   req.Predicate,
		Object:      req.Object,
		Aspect:      req.Aspect,
		Description: req.Description,
		Confidence:  req.Confidence,
	}
	if req.SourceID != "" {
		sourceID, err := uuid.Parse(req.SourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		in.SourceID = &sourceID
	}
	if req.ValidFrom != "" {
		vf, err := time.Parse(time.RFC3339, req.ValidFrom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid valid_from, expected RFC3339")
			return
		}
		in.ValidFrom = vf
	}

	fact, err := h.svc.Assert(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFactPredicateEmpty),
			errors.Is(err, service.ErrFactObjectEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrChildNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrConcurrentModification):
			writeError(w, http.StatusConflict, "fact was modified concurrently, retry")
		default:
			writeError(w, http.StatusInternalServerError, "failed to assert fact")
		}
		return
	}

	writeJSON(w, http.StatusCreated, fact)
}

type factsResponse struct {
	Facts []domain.TemporalFact `json:"facts"`
	Count int                   `json:"count"`
}

func (h *FactHandler) QueryCurrent(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	childID, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	predicate := r.URL.Query().Get("predicate")

	facts, err := h.svc.QueryCurrent(r.Context(), childID, family.ID, predicate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query facts")
		return
	}
	if facts == nil {
		facts = []domain.TemporalFact{}
	}

	writeJSON(w, http.StatusOK, factsResponse{Facts: facts, Count: len(facts)})
}

func (h *FactHandler) QueryAsOf(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	childID, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	predicate := r.URL.Query().Get("predicate")
	if predicate == "" {
		writeError(w, http.StatusBadRequest, "predicate parameter is required")
		return
	}

	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid at parameter, expected RFC3339")
		return
	}

	fact, err := h.svc.QueryAsOf(r.Context(), childID, family.ID, predicate, at)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no fact valid at the requested time")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query fact")
		return
	}

	writeJSON(w, http.StatusOK, fact)
}

func (h *FactHandler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	childID, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	aspect := r.URL.Query().Get("aspect")
	if aspect == "" {
		writeError(w, http.StatusBadRequest, "aspect parameter is required")
		return
	}

	facts, err := h.svc.QueryHistory(r.Context(), childID, family.ID, aspect)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query fact history")
		return
	}
	if facts == nil {
		facts = []domain.TemporalFact{}
	}

	writeJSON(w, http.StatusOK, factsResponse{Facts: facts, Count: len(facts)})
}
