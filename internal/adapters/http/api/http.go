// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/duelist/internal/adapters/repository"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/types"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	CreateDuel(ctx context.Context, challenger, opponent model.Participant) (types.Duel, error)
	Dispatch(ctx context.Context, sessionID string, ev duel.Event) (types.Outcome, error)
	Pending(ctx context.Context) []types.Duel
	Standing(ctx context.Context, id model.ID) (types.Standing, error)
	History(ctx context.Context, limit int) ([]model.HistoryRecord, error)
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	duelsHandler    *DuelsHandler
	standingHandler *StandingHandler
	historyHandler  *HistoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxHistory int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		duelsHandler:    NewDuelsHandler(deps),
		standingHandler: NewStandingHandler(deps),
		historyHandler:  NewHistoryHandler(deps, maxHistory),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /duels", MetricsMiddleware(s.duelsHandler.HandleCreate, "duels_create"))
	mux.HandleFunc("GET /duels", MetricsMiddleware(s.duelsHandler.HandleList, "duels_list"))
	mux.HandleFunc("POST /duels/{id}/{action}", MetricsMiddleware(s.duelsHandler.HandleEvent, "duels_event"))
	mux.HandleFunc("GET /standing/{id}", MetricsMiddleware(s.standingHandler.HandleGetStanding, "standing"))
	mux.HandleFunc("GET /history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, duel.ErrUnknownSession), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, duel.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "already_resolved", err)
	case errors.Is(err, duel.ErrDuplicateDuel), errors.Is(err, duel.ErrParticipantBusy):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, duel.ErrSelfChallenge),
		errors.Is(err, duel.ErrNotParticipant),
		errors.Is(err, duel.ErrInvalidEvent),
		errors.Is(err, duel.ErrInvalidTransition),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
