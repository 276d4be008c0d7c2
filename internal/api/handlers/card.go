package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/api/middleware"
	"github.com/sproutmind/sprout/internal/service"
)

type CardHandler struct {
	svc *service.CardService
}

func NewCardHandler(svc *service.CardService) *CardHandler {
	return &CardHandler{svc: svc}
}

func (h *CardHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
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

	cards, err := h.svc.DeriveForChild(r.Context(), childID, family.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to derive cards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}
