package duel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

// journal holds a resolution whose scores committed but whose history
// record did not. It is completed by the next event on the session.
type journal struct {
	record  model.HistoryRecord
	outcome Outcome
}

// Session is one duel. All state changes happen under mu; exactly one
// event moves it out of Pending.
type Session struct {
	ID         string
	Challenger model.Participant
	Opponent   model.Participant
	CreatedAt  time.Time

	reg *Registry

	mu         sync.Mutex
	state      State
	resolution Resolution
	venue      model.Venue
	journal    *journal
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.ID,
		Challenger: s.Challenger,
		Opponent:   s.Opponent,
		State:      s.state,
		Resolution: s.resolution,
		CreatedAt:  s.CreatedAt,
		Venue:      s.venue,
	}
}

func (s *Session) involves(id model.ID) bool {
	return s.Challenger.ID == id || s.Opponent.ID == id
}

// handle applies ev. On success the session is Resolved and the outcome
// must be finished by the caller outside the lock. On error the session
// is unchanged, except that a committed score update whose history append
// failed is journaled.
func (s *Session) handle(ctx context.Context, ev Event) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Pending {
		return Outcome{}, fmt.Errorf("session %s: %w", s.ID, ErrAlreadyResolved)
	}

	if s.journal != nil {
		return s.completeJournal(ctx)
	}

	var (
		out Outcome
		err error
	)
	switch ev.Kind {
	case EventWin:
		out, err = s.resolveWin(ctx, ev.Side)
	case EventRefuse:
		out, err = s.resolveRefusal(ctx, ev.By)
	case EventCancel:
		out = s.baseOutcome(Cancelled)
		out.Actor = ev.By
		out.Expired = ev.expired
	default:
		err = fmt.Errorf("%w: kind %d", ErrInvalidEvent, ev.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}
	s.markResolved(out.Resolution)
	return out, nil
}

func (s *Session) markResolved(r Resolution) {
	s.state = Resolved
	s.resolution = r
}

func (s *Session) baseOutcome(r Resolution) Outcome {
	return Outcome{
		SessionID:  s.ID,
		Resolution: r,
		Challenger: s.Challenger,
		Opponent:   s.Opponent,
		Venue:      s.venue,
		At:         s.reg.now(),
	}
}

func (s *Session) resolveWin(ctx context.Context, side Side) (Outcome, error) {
	var winner, loser model.Participant
	switch side {
	case ChallengerSide:
		winner, loser = s.Challenger, s.Opponent
	case OpponentSide:
		winner, loser = s.Opponent, s.Challenger
	default:
		return Outcome{}, fmt.Errorf("%w: unknown side %d", ErrInvalidEvent, side)
	}

	var points int
	changes, err := s.reg.scores.Update(ctx, []model.ID{winner.ID, loser.ID}, func(cur []int) ([]int, error) {
		res := s.reg.scorer.Win(cur[0], cur[1])
		points = res.PointsWon
		return []int{res.WinnerScore, res.LoserScore}, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("session %s: commit win scores: %w", s.ID, err)
	}

	out := s.baseOutcome(WinDeclared)
	out.Winner = &winner
	out.PointsWon = points
	out.Changes = []ScoreChange{
		s.reg.scoreChange(winner, changes[0]),
		s.reg.scoreChange(loser, changes[1]),
	}

	rec := s.record(out, true)
	winnerID := winner.ID
	rec.Winner = &winnerID
	return s.appendHistory(ctx, rec, out)
}

func (s *Session) resolveRefusal(ctx context.Context, by model.Participant) (Outcome, error) {
	var winner *model.Participant
	switch {
	case by.Is(s.Challenger):
		by = s.Challenger
		w := s.Opponent
		winner = &w
	case by.Is(s.Opponent):
		by = s.Opponent
		w := s.Challenger
		winner = &w
	case !s.reg.allowThirdPartyRefusal:
		return Outcome{}, fmt.Errorf("session %s: refusal by %s: %w", s.ID, by.ID, ErrNotParticipant)
	}

	changes, err := s.reg.scores.Update(ctx, []model.ID{by.ID}, func(cur []int) ([]int, error) {
		return []int{s.reg.scorer.Refuse(cur[0])}, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("session %s: commit refusal penalty: %w", s.ID, err)
	}

	out := s.baseOutcome(Refused)
	out.Actor = by
	out.Winner = winner
	out.Changes = []ScoreChange{s.reg.scoreChange(by, changes[0])}

	rec := s.record(out, false)
	if winner != nil {
		winnerID := winner.ID
		rec.Winner = &winnerID
	}
	return s.appendHistory(ctx, rec, out)
}

func (s *Session) record(out Outcome, accepted bool) model.HistoryRecord {
	return model.HistoryRecord{
		SessionID:      s.ID,
		Challenger:     s.Challenger.ID,
		ChallengerName: s.Challenger.Name(),
		Opponent:       s.Opponent.ID,
		OpponentName:   s.Opponent.Name(),
		Accepted:       accepted,
		PointsWon:      out.PointsWon,
		Timestamp:      out.At,
	}
}

func (s *Session) appendHistory(ctx context.Context, rec model.HistoryRecord, out Outcome) (Outcome, error) {
	if err := s.reg.history.Append(ctx, rec); err != nil {
		s.journal = &journal{record: rec, outcome: out}
		s.reg.logger.Error(ctx, "scores committed but history append failed; resolution journaled",
			logger.String("session", s.ID),
			logger.String("resolution", out.Resolution.String()),
			logger.Error(err))
		return Outcome{}, fmt.Errorf("session %s: append history: %w", s.ID, err)
	}
	return out, nil
}

// completeJournal retries only the history append of a previously
// committed resolution and returns that resolution.
func (s *Session) completeJournal(ctx context.Context) (Outcome, error) {
	j := s.journal
	if err := s.reg.history.Append(ctx, j.record); err != nil {
		return Outcome{}, fmt.Errorf("session %s: retry history append: %w", s.ID, err)
	}
	s.journal = nil
	s.markResolved(j.outcome.Resolution)
	metrics.RecordJournaledRetry()
	s.reg.logger.Info(ctx, "journaled resolution completed",
		logger.String("session", s.ID),
		logger.String("resolution", j.outcome.Resolution.String()))
	return j.outcome, nil
}
