package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
)

// Supported event actions on POST /duels/{id}/{action}.
const (
	actionWin    = "win"
	actionRefuse = "refuse"
	actionCancel = "cancel"
)

// DuelsHandler handles duel lifecycle requests.
type DuelsHandler struct {
	deps Dependencies
}

// NewDuelsHandler creates a new duels handler.
func NewDuelsHandler(deps Dependencies) *DuelsHandler {
	return &DuelsHandler{deps: deps}
}

// partyRequest carries a participant. IDs are strings so 64-bit snowflakes
// survive JSON clients that parse numbers as doubles.
type partyRequest struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (p partyRequest) participant(field string) (model.Participant, error) {
	if strings.TrimSpace(p.ID) == "" {
		return model.Participant{}, fmt.Errorf("%w: missing %s.id", ErrBadRequest, field)
	}
	id, err := model.ParseID(p.ID)
	if err != nil {
		return model.Participant{}, fmt.Errorf("%w: %s.id: %w", ErrBadRequest, field, err)
	}
	return model.Participant{ID: id, Label: p.Label}, nil
}

type createRequest struct {
	Challenger partyRequest `json:"challenger"`
	Opponent   partyRequest `json:"opponent"`
}

type eventRequest struct {
	Side string        `json:"side"`
	By   *partyRequest `json:"by"`
}

// HandleCreate handles POST /duels.
func (h *DuelsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	challenger, err := req.Challenger.participant("challenger")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	opponent, err := req.Opponent.participant("opponent")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	d, err := h.deps.CreateDuel(r.Context(), challenger, opponent)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleList handles GET /duels.
func (h *DuelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Pending(r.Context()))
}

// HandleEvent handles POST /duels/{id}/{action}.
func (h *DuelsHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := r.PathValue("action")

	var req eventRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
	}

	ev, err := req.event(action)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out, err := h.deps.Dispatch(r.Context(), id, ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (e eventRequest) event(action string) (duel.Event, error) {
	switch action {
	case actionWin:
		side, ok := duel.ParseSide(e.Side)
		if !ok {
			return duel.Event{}, fmt.Errorf("%w: side must be challenger or opponent", ErrBadRequest)
		}
		return duel.DeclareWin(side), nil
	case actionRefuse:
		if e.By == nil {
			return duel.Event{}, fmt.Errorf("%w: refuse requires by", ErrBadRequest)
		}
		by, err := e.By.participant("by")
		if err != nil {
			return duel.Event{}, err
		}
		return duel.Refuse(by), nil
	case actionCancel:
		var by model.Participant
		if e.By != nil {
			p, err := e.By.participant("by")
			if err != nil {
				return duel.Event{}, err
			}
			by = p
		}
		return duel.Cancel(by), nil
	default:
		return duel.Event{}, fmt.Errorf("%w: unknown action %q", ErrNotFound, action)
	}
}
