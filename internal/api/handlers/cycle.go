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

type CycleHandler struct {
	svc *service.CycleService
}

func NewCycleHandler(svc *service.CycleService) *CycleHandler {
	return &CycleHandler{svc: svc}
}

type spawnCycleRequest struct {
	Curiosity domain.Curiosity `json:"curiosity"`
}

func (h *CycleHandler) Spawn(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req spawnCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cycle, err := h.svc.Spawn(r.Context(), family.ID, req.Curiosity)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCuriosityFocusEmpty),
			errors.Is(err, domain.ErrCuriosityBadActivation),
			errors.Is(err, domain.ErrCuriosityPayloadMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrChildNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to spawn cycle")
		}
		return
	}

	writeJSON(w, http.StatusCreated, cycle)
}

func (h *CycleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}

	cycle, err := h.svc.GetByID(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, service.ErrCycleNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get cycle")
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

func (h *CycleHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
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

	cycles, err := h.svc.ListByChild(r.Context(), childID, family.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}
	if cycles == nil {
		cycles = []domain.ExplorationCycle{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

func (h *CycleHandler) Advance(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}

	cycle, err := h.svc.Advance(r.Context(), id, family.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCycleNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to advance cycle")
		}
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

type attachHypothesisRequest struct {
	HypothesisID string `json:"hypothesis_id"`
}

func (h *CycleHandler) AttachHypothesis(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}

	var req attachHypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	hypothesisID, err := uuid.Parse(req.HypothesisID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis_id")
		return
	}

	cycle, err := h.svc.AttachHypothesis(r.Context(), id, family.ID, hypothesisID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCycleNotFound),
			errors.Is(err, service.ErrHypothesisNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to attach hypothesis")
		}
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

type attachArtifactRequest struct {
	Type                 string          `json:"type"`
	Content              json.RawMessage `json:"content,omitempty"`
	Status               string          `json:"status,omitempty"`
	RelatedHypothesisIDs []string        `json:"related_hypothesis_ids,omitempty"`
	ExpectedUnits        int             `json:"expected_units,omitempty"`
}

func (h *CycleHandler) AttachArtifact(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}

	var req attachArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	related, err := parseUUIDs(req.RelatedHypothesisIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid related_hypothesis_ids")
		return
	}

	artifact, err := h.svc.AttachArtifact(r.Context(), service.AttachArtifactInput{
		CycleID:              id,
		FamilyID:             family.ID,
		Type:                 domain.ArtifactType(req.Type),
		Content:              req.Content,
		Status:               domain.ArtifactStatus(req.Status),
		RelatedHypothesisIDs: related,
		ExpectedUnits:        req.ExpectedUnits,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidArtifactType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCycleNotFound),
			errors.Is(err, service.ErrHypothesisNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to attach artifact")
		}
		return
	}

	writeJSON(w, http.StatusCreated, artifact)
}

func (h *CycleHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}

	artifactType := chi.URLParam(r, "type")

	artifact, err := h.svc.GetArtifact(r.Context(), id, family.ID, domain.ArtifactType(artifactType))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidArtifactType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCycleNotFound),
			errors.Is(err, service.ErrArtifactNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to get artifact")
		}
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

type updateArtifactStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *CycleHandler) UpdateArtifactStatus(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "artifactID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid artifact id")
		return
	}

	var req updateArtifactStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	artifact, err := h.svc.UpdateArtifactStatus(r.Context(), id, family.ID, domain.ArtifactStatus(req.Status), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArtifactNotFound),
			errors.Is(err, service.ErrCycleNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update artifact status")
		}
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

type recordFulfillmentRequest struct {
	Units int `json:"units,omitempty"`
}

func (h *CycleHandler) RecordFulfillment(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "artifactID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid artifact id")
		return
	}

	var req recordFulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	artifact, err := h.svc.RecordFulfillment(r.Context(), id, family.ID, req.Units)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArtifactNotFound),
			errors.Is(err, service.ErrCycleNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to record fulfillment")
		}
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}
