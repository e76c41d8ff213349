package duel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/duelist/internal/adapters/repository"
	"github.com/okian/duelist/internal/domain/dedupe"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/internal/domain/scoring"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

// Registry owns every live session and routes events to them.
type Registry struct {
	scores  repository.ScoreStore
	history repository.HistoryLog
	table   *rank.Table
	scorer  scoring.Scorer

	channels ChannelProvider
	notifier Notifier
	roles    RoleAssigner
	logger   logger.Logger
	resolved dedupe.Deduper
	now      func() time.Time
	newID    func() string

	announceInitialRank    bool
	allowConcurrent        bool
	allowThirdPartyRefusal bool

	mu            sync.RWMutex
	sessions      map[string]*Session
	byParticipant map[model.ID]map[string]*Session
}

// NewRegistry creates a registry that resolves duels against the given
// stores using table and scorer.
func NewRegistry(scores repository.ScoreStore, history repository.HistoryLog, table *rank.Table, scorer scoring.Scorer, opts ...Option) *Registry {
	r := &Registry{
		scores:          scores,
		history:         history,
		table:           table,
		scorer:          scorer,
		channels:        NopChannels{},
		notifier:        NopNotifier{},
		roles:           NopRoles{},
		logger:          logger.Get().Named("duel"),
		now:             nowUTC,
		newID:           newSessionID,
		allowConcurrent: true,
		sessions:        make(map[string]*Session),
		byParticipant:   make(map[model.ID]map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolved == nil {
		r.resolved = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(defaultResolvedCacheSize))
	}
	return r
}

// Create registers a new pending duel and creates its venue.
func (r *Registry) Create(ctx context.Context, challenger, opponent model.Participant) (*Session, error) {
	if challenger.Is(opponent) {
		metrics.RecordCreateRejected("self_challenge")
		return nil, ErrSelfChallenge
	}

	s := &Session{
		ID:         r.newID(),
		Challenger: challenger,
		Opponent:   opponent,
		CreatedAt:  r.now(),
		reg:        r,
	}
	if err := r.insert(s); err != nil {
		return nil, err
	}

	venue, err := r.channels.CreateDuelVenue(ctx, challenger, opponent)
	if err != nil {
		r.detach(s.ID)
		metrics.RecordCreateRejected("venue")
		return nil, fmt.Errorf("create duel venue: %w", err)
	}

	s.mu.Lock()
	s.venue = venue
	state := s.state
	s.mu.Unlock()
	if state != Pending {
		r.runSideEffect(ctx, venue, "delete_venue", func() error { return r.channels.DeleteVenue(ctx, venue) })
		metrics.RecordCreateRejected("resolved")
		return nil, fmt.Errorf("session %s: %w", s.ID, ErrResolvedBeforeReady)
	}

	metrics.RecordDuelCreated()
	r.logger.Info(ctx, "duel created",
		logger.String("session", s.ID),
		logger.Uint64("challenger", uint64(challenger.ID)),
		logger.Uint64("opponent", uint64(opponent.ID)),
		logger.String("venue", venue.ID))

	snap := s.Snapshot()
	r.runSideEffect(ctx, venue, "announce_created", func() error { return r.notifier.AnnounceDuelCreated(ctx, snap) })
	return s, nil
}

func (r *Registry) insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.byParticipant[s.Challenger.ID] {
		if other.involves(s.Opponent.ID) {
			metrics.RecordCreateRejected("duplicate")
			return fmt.Errorf("%s vs %s: %w", s.Challenger.ID, s.Opponent.ID, ErrDuplicateDuel)
		}
	}
	if !r.allowConcurrent {
		for _, id := range []model.ID{s.Challenger.ID, s.Opponent.ID} {
			if len(r.byParticipant[id]) > 0 {
				metrics.RecordCreateRejected("busy")
				return fmt.Errorf("participant %s: %w", id, ErrParticipantBusy)
			}
		}
	}

	r.sessions[s.ID] = s
	for _, id := range []model.ID{s.Challenger.ID, s.Opponent.ID} {
		m, ok := r.byParticipant[id]
		if !ok {
			m = make(map[string]*Session)
			r.byParticipant[id] = m
		}
		m[s.ID] = s
	}
	metrics.UpdatePendingDuels(len(r.sessions))
	return nil
}

// detach drops a session from the indexes and reports whether it was present.
func (r *Registry) detach(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	for _, pid := range []model.ID{s.Challenger.ID, s.Opponent.ID} {
		if m := r.byParticipant[pid]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(r.byParticipant, pid)
			}
		}
	}
	metrics.UpdatePendingDuels(len(r.sessions))
	return s, true
}

// Remove drops a terminal session and remembers it as resolved, so later
// events are answered with ErrAlreadyResolved rather than ErrUnknownSession.
func (r *Registry) Remove(ctx context.Context, id string) {
	if _, ok := r.Get(id); !ok {
		return
	}
	// Recorded before detaching so a concurrent Dispatch never sees the
	// session as unknown.
	r.resolved.SeenAndRecord(ctx, id)
	r.detach(id)
	metrics.UpdateResolvedCacheSize(r.resolved.Size())
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Pending returns snapshots of live sessions, oldest first.
func (r *Registry) Pending() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Dispatch delivers ev to the session. Exactly one event resolves a
// session; later ones fail with ErrAlreadyResolved and have no effect.
func (r *Registry) Dispatch(ctx context.Context, id string, ev Event) (Outcome, error) {
	start := time.Now()

	s, ok := r.Get(id)
	if !ok {
		if r.resolved.Contains(ctx, id) {
			return Outcome{}, r.reject(ctx, id, ev, fmt.Errorf("session %s: %w", id, ErrAlreadyResolved))
		}
		return Outcome{}, r.reject(ctx, id, ev, fmt.Errorf("session %s: %w", id, ErrUnknownSession))
	}

	out, err := s.handle(ctx, ev)
	if err != nil {
		return Outcome{}, r.reject(ctx, id, ev, err)
	}

	r.Remove(ctx, id)
	metrics.RecordDuelResolved(out.Resolution.String())
	metrics.RecordScoreUpdate(len(out.Changes))
	metrics.RecordResolutionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if out.Expired {
		metrics.RecordDuelExpired()
	}
	r.logger.Info(ctx, "duel resolved",
		logger.String("session", id),
		logger.String("resolution", out.Resolution.String()),
		logger.Int("points", out.PointsWon))

	r.finish(ctx, out)
	return out, nil
}

func (r *Registry) reject(ctx context.Context, id string, ev Event, err error) error {
	reason := "error"
	switch {
	case errors.Is(err, ErrAlreadyResolved):
		reason = "already_resolved"
		r.logger.Warn(ctx, "event for resolved duel ignored",
			logger.String("session", id), logger.String("event", ev.Kind.String()))
	case errors.Is(err, ErrUnknownSession):
		reason = "unknown_session"
		r.logger.Warn(ctx, "event for unknown duel ignored",
			logger.String("session", id), logger.String("event", ev.Kind.String()))
	case errors.Is(err, ErrNotParticipant):
		reason = "not_participant"
	case errors.Is(err, ErrInvalidEvent):
		reason = "invalid_event"
	case errors.Is(err, repository.ErrStoreUnavailable):
		reason = "store_unavailable"
		r.logger.Error(ctx, "duel resolution failed, session stays pending",
			logger.String("session", id), logger.Error(err))
	}
	metrics.RecordEventRejected(reason)
	return err
}

// Expire cancels every session pending for longer than ttl and returns
// how many were cancelled.
func (r *Registry) Expire(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	var stale []string
	for _, snap := range r.Pending() {
		if snap.CreatedAt.Before(cutoff) {
			stale = append(stale, snap.ID)
		}
	}

	n := 0
	for _, id := range stale {
		if _, err := r.Dispatch(ctx, id, expire()); err == nil {
			n++
		}
	}
	return n
}

func (r *Registry) scoreChange(p model.Participant, c repository.Change) ScoreChange {
	return ScoreChange{
		Participant: p,
		Old:         c.Old,
		New:         c.New,
		First:       c.First,
		Transition:  r.table.Classify(c.Old, c.New),
	}
}

// Standing returns a participant's score and rank.
func (r *Registry) Standing(ctx context.Context, id model.ID) (int, rank.Rank, error) {
	score, err := r.scores.Get(ctx, id)
	if err != nil {
		return 0, rank.Rank{}, err
	}
	return score, r.table.Of(score), nil
}
