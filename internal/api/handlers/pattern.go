package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/api/middleware"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/service"
)

type PatternHandler struct {
	svc *service.PatternService
}

func NewPatternHandler(svc *service.PatternService) *PatternHandler {
	return &PatternHandler{svc: svc}
}

type notePatternRequest struct {
	ChildID        string   `json:"child_id"`
	Theme          string   `json:"theme"`
	Domains        []string `json:"domains,omitempty"`
	ObservationIDs []string `json:"observation_ids,omitempty"`
	HypothesisIDs  []string `json:"hypothesis_ids,omitempty"`
	Confidence     float32  `json:"confidence,omitempty"`
	Source         string   `json:"source,omitempty"`
}

func (h *PatternHandler) Note(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req notePatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	childID, err := uuid.Parse(req.ChildID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child_id")
		return
	}

	observationIDs, err := parseUUIDs(req.ObservationIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid observation_ids")
		return
	}
	hypothesisIDs, err := parseUUIDs(req.HypothesisIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis_ids")
		return
	}

	pattern, err := h.svc.Note(r.Context(), service.NotePatternInput{
		ChildID:        childID,
		FamilyID:       family.ID,
		Theme:          req.Theme,
		Domains:        req.Domains,
		ObservationIDs: observationIDs,
		HypothesisIDs:  hypothesisIDs,
		Confidence:     req.Confidence,
		Source:         domain.PatternSource(req.Source),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPatternThemeEmpty),
			errors.Is(err, service.ErrInvalidPatternSource):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrChildNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to note pattern")
		}
		return
	}

	writeJSON(w, http.StatusOK, pattern)
}

func (h *PatternHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	pattern, err := h.svc.GetByID(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, service.ErrPatternNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get pattern")
		return
	}

	writeJSON(w, http.StatusOK, pattern)
}

func (h *PatternHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
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

	patterns, err := h.svc.ListByChild(r.Context(), childID, family.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list patterns")
		return
	}
	if patterns == nil {
		patterns = []domain.Pattern{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

func parseUUIDs(ss []string) ([]uuid.UUID, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
