package duel

import (
	"context"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
)

// ChannelProvider creates and destroys the ephemeral venue of a duel.
type ChannelProvider interface {
	CreateDuelVenue(ctx context.Context, challenger, opponent model.Participant) (model.Venue, error)
	DeleteVenue(ctx context.Context, venue model.Venue) error
}

// Notifier publishes human-readable announcements.
type Notifier interface {
	AnnounceDuelCreated(ctx context.Context, s Snapshot) error
	AnnounceOutcome(ctx context.Context, out Outcome) error
	AnnounceRankChange(ctx context.Context, p model.Participant, from, to rank.Rank) error
	// AnnounceError reports a failed side effect of a duel to its venue.
	AnnounceError(ctx context.Context, venue model.Venue, err error) error
}

// RoleAssigner mirrors ranks onto the host platform.
type RoleAssigner interface {
	Assign(ctx context.Context, id model.ID, r rank.Rank) error
	Unassign(ctx context.Context, id model.ID, r rank.Rank) error
}

// NopChannels provides named venues without any backing platform.
type NopChannels struct{}

// CreateDuelVenue implements ChannelProvider.
func (NopChannels) CreateDuelVenue(_ context.Context, challenger, opponent model.Participant) (model.Venue, error) {
	return model.Venue{Name: VenueName(challenger, opponent, nowUTC())}, nil
}

// DeleteVenue implements ChannelProvider.
func (NopChannels) DeleteVenue(context.Context, model.Venue) error { return nil }

// NopNotifier discards announcements.
type NopNotifier struct{}

func (NopNotifier) AnnounceDuelCreated(context.Context, Snapshot) error { return nil }
func (NopNotifier) AnnounceOutcome(context.Context, Outcome) error      { return nil }
func (NopNotifier) AnnounceRankChange(context.Context, model.Participant, rank.Rank, rank.Rank) error {
	return nil
}
func (NopNotifier) AnnounceError(context.Context, model.Venue, error) error { return nil }

// NopRoles discards role updates.
type NopRoles struct{}

func (NopRoles) Assign(context.Context, model.ID, rank.Rank) error   { return nil }
func (NopRoles) Unassign(context.Context, model.ID, rank.Rank) error { return nil }
