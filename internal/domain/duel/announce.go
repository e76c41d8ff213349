package duel

import (
	"context"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

// finish runs the post-commit side effects of an outcome. Every step is
// best-effort: failures are logged, counted and reported to the venue,
// and never stop the remaining steps.
func (r *Registry) finish(ctx context.Context, out Outcome) {
	r.runSideEffect(ctx, out.Venue, "announce_outcome", func() error { return r.notifier.AnnounceOutcome(ctx, out) })

	for _, c := range out.Changes {
		r.syncRank(ctx, out.Venue, c)
	}

	if !out.Venue.IsZero() {
		r.runSideEffect(ctx, out.Venue, "delete_venue", func() error { return r.channels.DeleteVenue(ctx, out.Venue) })
	}
}

func (r *Registry) syncRank(ctx context.Context, venue model.Venue, c ScoreChange) {
	tr := c.Transition
	p := c.Participant

	switch tr.Direction {
	case rank.Promotion, rank.Demotion:
		metrics.RecordRankChange(tr.Direction.String())
		r.runSideEffect(ctx, venue, "unassign", func() error { return r.roles.Unassign(ctx, p.ID, tr.From) })
		r.runSideEffect(ctx, venue, "assign", func() error { return r.roles.Assign(ctx, p.ID, tr.To) })
		r.runSideEffect(ctx, venue, "announce_rank", func() error { return r.notifier.AnnounceRankChange(ctx, p, tr.From, tr.To) })
	case rank.Initial:
		r.runSideEffect(ctx, venue, "assign", func() error { return r.roles.Assign(ctx, p.ID, tr.To) })
		if r.announceInitialRank && c.First {
			metrics.RecordRankChange(tr.Direction.String())
			r.runSideEffect(ctx, venue, "announce_rank", func() error { return r.notifier.AnnounceRankChange(ctx, p, tr.From, tr.To) })
		}
	case rank.Unchanged:
	}
}

// runSideEffect executes fn and reports a failure without propagating it.
func (r *Registry) runSideEffect(ctx context.Context, venue model.Venue, op string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	metrics.RecordNotifierError(op)
	r.logger.Warn(ctx, "duel side effect failed",
		logger.String("op", op),
		logger.String("venue", venue.ID),
		logger.Error(err))

	if op == "delete_venue" || venue.IsZero() {
		return
	}
	if aerr := r.notifier.AnnounceError(ctx, venue, err); aerr != nil {
		metrics.RecordNotifierError("announce_error")
		r.logger.Warn(ctx, "failed to report side effect error",
			logger.String("op", op), logger.Error(aerr))
	}
}
