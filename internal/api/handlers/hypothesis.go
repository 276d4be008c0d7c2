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
)

type HypothesisHandler struct {
	svc       *service.HypothesisService
	staleness *service.StalenessService
}

func NewHypothesisHandler(svc *service.HypothesisService, staleness *service.StalenessService) *HypothesisHandler {
	return &HypothesisHandler{svc: svc, staleness: staleness}
}

type evidenceRequest struct {
	SourceKind string `json:"source_kind,omitempty"`
	Content    string `json:"content"`
	Domain     string `json:"domain,omitempty"`
	ObservedAt string `json:"observed_at,omitempty"`
}

func (e *evidenceRequest) toInput() (service.EvidenceInput, error) {
	in := service.EvidenceInput{
		SourceKind: domain.SourceKind(e.SourceKind),
		Content:    e.Content,
		Domain:     e.Domain,
	}
	if e.ObservedAt != "" {
		t, err := time.Parse(time.RFC3339, e.ObservedAt)
		if err != nil {
			return in, err
		}
		in.ObservedAt = t
	}
	return in, nil
}

type formHypothesisRequest struct {
	ChildID            string            `json:"child_id"`
	Theory             string            `json:"theory"`
	Domain             string            `json:"domain,omitempty"`
	SupportingEvidence []evidenceRequest `json:"supporting_evidence,omitempty"`
	Confidence         float32           `json:"confidence,omitempty"`
}

func (h *HypothesisHandler) Form(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req formHypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	childID, err := uuid.Parse(req.ChildID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child_id")
		return
	}

	in := service.FormHypothesisInput{
		ChildID:        childID,
		FamilyID:       family.ID,
		Theory:         req.Theory,
		Domain:         req.Domain,
		ConfidenceSeed: req.Confidence,
	}
	for _, ev := range req.SupportingEvidence {
		evIn, err := ev.toInput()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid observed_at, expected RFC3339")
			return
		}
		in.SupportingEvidence = append(in.SupportingEvidence, evIn)
	}

	hyp, err := h.svc.Form(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHypothesisTheoryEmpty),
			errors.Is(err, service.ErrEvidenceContentEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrChildNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to form hypothesis")
		}
		return
	}

	writeJSON(w, http.StatusCreated, hyp)
}

type addEvidenceRequest struct {
	Evidence evidenceRequest `json:"evidence"`
	Effect   string          `json:"effect"`
}

func (h *HypothesisHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	var req addEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	evIn, err := req.Evidence.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid observed_at, expected RFC3339")
		return
	}

	hyp, err := h.svc.AddEvidence(r.Context(), id, family.ID, evIn, domain.EvidenceEffect(req.Effect))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEffect),
			errors.Is(err, service.ErrEvidenceContentEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrHypothesisNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add evidence")
		}
		return
	}

	writeJSON(w, http.StatusOK, hyp)
}

type resolveRequest struct {
	Resolution  string `json:"resolution"`
	Note        string `json:"note,omitempty"`
	EvolvedInto string `json:"evolved_into,omitempty"`
}

func (h *HypothesisHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var evolvedInto *uuid.UUID
	if req.EvolvedInto != "" {
		eid, err := uuid.Parse(req.EvolvedInto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid evolved_into")
			return
		}
		evolvedInto = &eid
	}

	hyp, err := h.svc.Resolve(r.Context(), id, family.ID, domain.Resolution(req.Resolution), req.Note, evolvedInto)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResolution):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrHypothesisNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to resolve hypothesis")
		}
		return
	}

	writeJSON(w, http.StatusOK, hyp)
}

func (h *HypothesisHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	hyp, err := h.svc.GetByID(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, service.ErrHypothesisNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get hypothesis")
		return
	}

	writeJSON(w, http.StatusOK, hyp)
}

// ListEvidence renders the hypothesis's evidence chain.
func (h *HypothesisHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	evidence, err := h.svc.ListEvidence(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, service.ErrHypothesisNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list evidence")
		return
	}
	if evidence == nil {
		evidence = []domain.Evidence{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evidence": evidence,
		"count":    len(evidence),
	})
}

func (h *HypothesisHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	e, err := h.svc.GetEvidence(r.Context(), id, family.ID)
	if err != nil {
		if errors.Is(err, service.ErrEvidenceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get evidence")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// CheckStaleness re-runs the artifact staleness rules for every artifact
// referencing the hypothesis, outside the usual mutation path.
func (h *HypothesisHandler) CheckStaleness(w http.ResponseWriter, r *http.Request) {
	family := middleware.FamilyFromContext(r.Context())
	if family == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	if err := h.staleness.CheckByID(r.Context(), id, family.ID); err != nil {
		if errors.Is(err, service.ErrHypothesisNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to check staleness")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hypothesis_id": id.String(),
		"checked":       true,
	})
}

func (h *HypothesisHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
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

	hyps, err := h.svc.ListByChild(r.Context(), childID, family.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hypotheses")
		return
	}
	if hyps == nil {
		hyps = []domain.Hypothesis{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hypotheses": hyps,
		"count":      len(hyps),
	})
}
