package worker

import (
	"context"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
)

// Dispatcher moves chat-platform side effects off the resolution path.
// Venue-bound notices are keyed by venue and role or rank notices by
// participant, so each stream is delivered in order. Venue creation stays
// synchronous because the session needs its result.
type Dispatcher struct {
	pool     *Pool
	channels duel.ChannelProvider
	notifier duel.Notifier
	roles    duel.RoleAssigner
}

var (
	_ duel.ChannelProvider = (*Dispatcher)(nil)
	_ duel.Notifier        = (*Dispatcher)(nil)
	_ duel.RoleAssigner    = (*Dispatcher)(nil)
)

// NewDispatcher wraps the platform collaborators with asynchronous delivery.
func NewDispatcher(pool *Pool, channels duel.ChannelProvider, notifier duel.Notifier, roles duel.RoleAssigner) *Dispatcher {
	return &Dispatcher{pool: pool, channels: channels, notifier: notifier, roles: roles}
}

// submit queues call under key. A failed venue notice is reported back to
// the venue through AnnounceError. Delivery errors are logged and counted
// by the pool and never returned.
func (d *Dispatcher) submit(ctx context.Context, kind, key string, venue model.Venue, call func(context.Context) error) error {
	_ = d.pool.Submit(ctx, model.Notice{
		Kind: kind,
		Key:  key,
		Deliver: func(dctx context.Context) error {
			err := call(dctx)
			if err != nil && !venue.IsZero() && kind != model.NoticeDeleteVenue && kind != model.NoticeError {
				_ = d.notifier.AnnounceError(dctx, venue, err)
			}
			return err
		},
	})
	return nil
}

func venueKey(v model.Venue) string { return "venue:" + v.ID }

func participantKey(id model.ID) string { return "participant:" + id.String() }

// CreateDuelVenue implements duel.ChannelProvider synchronously.
func (d *Dispatcher) CreateDuelVenue(ctx context.Context, challenger, opponent model.Participant) (model.Venue, error) {
	return d.channels.CreateDuelVenue(ctx, challenger, opponent)
}

// DeleteVenue implements duel.ChannelProvider.
func (d *Dispatcher) DeleteVenue(ctx context.Context, venue model.Venue) error {
	return d.submit(ctx, model.NoticeDeleteVenue, venueKey(venue), venue, func(c context.Context) error {
		return d.channels.DeleteVenue(c, venue)
	})
}

// AnnounceDuelCreated implements duel.Notifier.
func (d *Dispatcher) AnnounceDuelCreated(ctx context.Context, s duel.Snapshot) error {
	return d.submit(ctx, model.NoticeDuelCreated, venueKey(s.Venue), s.Venue, func(c context.Context) error {
		return d.notifier.AnnounceDuelCreated(c, s)
	})
}

// AnnounceOutcome implements duel.Notifier.
func (d *Dispatcher) AnnounceOutcome(ctx context.Context, out duel.Outcome) error {
	return d.submit(ctx, model.NoticeOutcome, venueKey(out.Venue), out.Venue, func(c context.Context) error {
		return d.notifier.AnnounceOutcome(c, out)
	})
}

// AnnounceRankChange implements duel.Notifier.
func (d *Dispatcher) AnnounceRankChange(ctx context.Context, p model.Participant, from, to rank.Rank) error {
	return d.submit(ctx, model.NoticeRankChange, participantKey(p.ID), model.Venue{}, func(c context.Context) error {
		return d.notifier.AnnounceRankChange(c, p, from, to)
	})
}

// AnnounceError implements duel.Notifier.
func (d *Dispatcher) AnnounceError(ctx context.Context, venue model.Venue, err error) error {
	return d.submit(ctx, model.NoticeError, venueKey(venue), venue, func(c context.Context) error {
		return d.notifier.AnnounceError(c, venue, err)
	})
}

// Assign implements duel.RoleAssigner.
func (d *Dispatcher) Assign(ctx context.Context, id model.ID, r rank.Rank) error {
	return d.submit(ctx, model.NoticeAssign, participantKey(id), model.Venue{}, func(c context.Context) error {
		return d.roles.Assign(c, id, r)
	})
}

// Unassign implements duel.RoleAssigner.
func (d *Dispatcher) Unassign(ctx context.Context, id model.ID, r rank.Rank) error {
	return d.submit(ctx, model.NoticeUnassign, participantKey(id), model.Venue{}, func(c context.Context) error {
		return d.roles.Unassign(c, id, r)
	})
}
