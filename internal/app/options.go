package service

import (
	"github.com/okian/duelist/internal/adapters/repository"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the service configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore uses st instead of opening the configured backend. The caller
// owns st and closes it after Stop.
func WithStore(st repository.Store, backend string) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
			s.backend = backend
		}
	}
}

// WithPlatform sets the chat-platform collaborators. Notices to them are
// delivered through the notification pool.
func WithPlatform(channels duel.ChannelProvider, notifier duel.Notifier, roles duel.RoleAssigner) Option {
	return func(s *Service) {
		s.channels = channels
		s.notifier = notifier
		s.roles = roles
	}
}

// WithDuelOptions passes extra options to the duel registry.
func WithDuelOptions(opts ...duel.Option) Option {
	return func(s *Service) {
		s.duelOpts = append(s.duelOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
