package duel

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/duelist/internal/domain/dedupe"
	"github.com/okian/duelist/pkg/logger"
)

// Default registry configuration constants.
const (
	defaultResolvedCacheSize = 10000
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithChannelProvider sets the venue provider.
func WithChannelProvider(c ChannelProvider) Option {
	return func(r *Registry) {
		if c != nil {
			r.channels = c
		}
	}
}

// WithNotifier sets the announcement sink.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRoleAssigner sets the rank role sink.
func WithRoleAssigner(a RoleAssigner) Option {
	return func(r *Registry) {
		if a != nil {
			r.roles = a
		}
	}
}

// WithAnnounceInitialRank announces the entry-tier rank the first time a
// participant is scored.
func WithAnnounceInitialRank(on bool) Option {
	return func(r *Registry) { r.announceInitialRank = on }
}

// WithConcurrentDuels allows a participant to hold several pending duels
// against different opponents.
func WithConcurrentDuels(on bool) Option {
	return func(r *Registry) { r.allowConcurrent = on }
}

// WithThirdPartyRefusal lets non-participants refuse a duel; the penalty
// then applies to them and no winner is recorded.
func WithThirdPartyRefusal(on bool) Option {
	return func(r *Registry) { r.allowThirdPartyRefusal = on }
}

// WithResolvedCache sets the tracker of sessions that left the registry.
func WithResolvedCache(d dedupe.Deduper) Option {
	return func(r *Registry) {
		if d != nil {
			r.resolved = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

func newSessionID() string { return uuid.NewString() }
