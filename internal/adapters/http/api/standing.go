package api

import (
	"fmt"
	"net/http"

	"github.com/okian/duelist/internal/domain/model"
)

// StandingHandler handles standing requests.
type StandingHandler struct {
	deps Dependencies
}

// NewStandingHandler creates a new standing handler.
func NewStandingHandler(deps Dependencies) *StandingHandler {
	return &StandingHandler{deps: deps}
}

// HandleGetStanding handles GET /standing/{id} requests.
func (h *StandingHandler) HandleGetStanding(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	st, err := h.deps.Standing(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
