// Package service wires the duel engine to its store, rank table and
// notification pool, and implements the dependencies of the HTTP API and
// the Discord handler.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/duelist/internal/adapters/mq/worker"
	"github.com/okian/duelist/internal/adapters/repository"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/internal/domain/dedupe"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/internal/domain/scoring"
	"github.com/okian/duelist/internal/domain/types"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service owns the duel registry and its collaborators.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	store   repository.Store
	backend string
	// ownStore is set when Start opened the store; Stop closes only those.
	ownStore bool

	table    *rank.Table
	resolved dedupe.Deduper
	registry *duel.Registry
	pool     *worker.Pool

	channels duel.ChannelProvider
	notifier duel.Notifier
	roles    duel.RoleAssigner
	duelOpts []duel.Option

	started    bool
	stopCh     chan struct{}
	reaperDone chan struct{}

	logger logger.Logger
}

// New constructs a Service. Start must be called before use.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	opts := []repository.Option{repository.WithMaxScore(cfg.MaxScore)}
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return repository.NewMemoryStore(opts...), nil
	case config.BackendSQLite:
		return repository.OpenSQLite(ctx, cfg.SQLitePath, opts...)
	case config.BackendRedis:
		opts = append(opts, repository.WithKeyPrefix(cfg.RedisPrefix))
		return repository.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackend, cfg.StorageBackend)
	}
}

// Start opens the store and starts the notification pool and, when a duel
// TTL is configured, the expiry loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting duel service...")

	table, err := rank.NewTable(s.cfg.MaxScore, s.cfg.BandWidth, s.cfg.RankNames)
	if err != nil {
		return fmt.Errorf("build rank table: %w", err)
	}
	s.table = table

	if s.store == nil {
		st, err := openStore(ctx, s.cfg)
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.cfg.StorageBackend, err)
		}
		s.store = st
		s.backend = s.cfg.StorageBackend
		s.ownStore = true
	}

	scorer := scoring.NewBandScorer(table,
		scoring.WithRefusalPenalty(s.cfg.RefusalPenalty),
		scoring.WithLossPenalty(s.cfg.LossPenalty),
	)
	s.resolved = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.ResolvedCacheSize))

	s.pool = worker.NewPool(s.cfg.NotifyWorkers, s.cfg.NotifyQueueSize)
	// Stop drains the pool; cancelling the start context must not.
	s.pool.Start(context.WithoutCancel(ctx))

	opts := []duel.Option{
		duel.WithAnnounceInitialRank(s.cfg.AnnounceInitialRank),
		duel.WithConcurrentDuels(s.cfg.AllowConcurrentDuels),
		duel.WithThirdPartyRefusal(s.cfg.AllowThirdPartyRefusal),
		duel.WithResolvedCache(s.resolved),
	}
	if s.channels != nil || s.notifier != nil || s.roles != nil {
		d := worker.NewDispatcher(s.pool, orChannels(s.channels), orNotifier(s.notifier), orRoles(s.roles))
		opts = append(opts,
			duel.WithChannelProvider(d),
			duel.WithNotifier(d),
			duel.WithRoleAssigner(d),
		)
	}
	opts = append(opts, s.duelOpts...)
	s.registry = duel.NewRegistry(s.store, s.store, table, scorer, opts...)

	s.stopCh = make(chan struct{})
	s.reaperDone = make(chan struct{})
	if s.cfg.DuelTTL > 0 {
		go s.reap(s.cfg.DuelTTL)
	} else {
		close(s.reaperDone)
	}

	s.started = true
	s.logger.Info(ctx, "duel service started",
		logger.String("backend", s.backend),
		logger.Int("notify_workers", s.cfg.NotifyWorkers),
		logger.Duration("duel_ttl", s.cfg.DuelTTL),
	)
	return nil
}

func orChannels(c duel.ChannelProvider) duel.ChannelProvider {
	if c == nil {
		return duel.NopChannels{}
	}
	return c
}

func orNotifier(n duel.Notifier) duel.Notifier {
	if n == nil {
		return duel.NopNotifier{}
	}
	return n
}

func orRoles(r duel.RoleAssigner) duel.RoleAssigner {
	if r == nil {
		return duel.NopRoles{}
	}
	return r
}

// reap cancels stale duels every ttl/4 until Stop.
func (s *Service) reap(ttl time.Duration) {
	defer close(s.reaperDone)

	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			if n := s.registry.Expire(ctx, ttl); n > 0 {
				s.logger.Info(ctx, "expired stale duels", logger.Int("count", n))
			}
		}
	}
}

// Stop drains pending notices and closes the store it opened. A store
// passed through WithStore stays open for the caller.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping duel service...")

	close(s.stopCh)
	<-s.reaperDone

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	var firstErr error
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, "notification pool shutdown failed", logger.Error(err))
		firstErr = err
	}
	if s.ownStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "store close failed", logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		s.store = nil
		s.ownStore = false
	}

	s.started = false
	s.logger.Info(ctx, "duel service stopped")
	return firstErr
}

func (s *Service) engine() (*duel.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.registry, nil
}

// CreateDuel opens a duel between challenger and opponent.
func (s *Service) CreateDuel(ctx context.Context, challenger, opponent model.Participant) (types.Duel, error) {
	reg, err := s.engine()
	if err != nil {
		return types.Duel{}, err
	}
	sess, err := reg.Create(ctx, challenger, opponent)
	if err != nil {
		return types.Duel{}, err
	}
	return types.NewDuel(sess.Snapshot()), nil
}

// Dispatch delivers ev to the session sessionID.
func (s *Service) Dispatch(ctx context.Context, sessionID string, ev duel.Event) (types.Outcome, error) {
	reg, err := s.engine()
	if err != nil {
		return types.Outcome{}, err
	}
	out, err := reg.Dispatch(ctx, sessionID, ev)
	if err != nil {
		return types.Outcome{}, err
	}
	return types.NewOutcome(out), nil
}

// Pending lists live duels, oldest first.
func (s *Service) Pending(ctx context.Context) []types.Duel {
	reg, err := s.engine()
	if err != nil {
		return nil
	}
	snaps := reg.Pending()
	out := make([]types.Duel, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, types.NewDuel(snap))
	}
	return out
}

// Standing returns a participant's score and rank. Unknown participants
// stand at zero in the entry tier.
func (s *Service) Standing(ctx context.Context, id model.ID) (types.Standing, error) {
	reg, err := s.engine()
	if err != nil {
		return types.Standing{}, err
	}
	score, r, err := reg.Standing(ctx, id)
	if err != nil {
		return types.Standing{}, err
	}
	return types.NewStanding(id, score, r), nil
}

// History returns the newest limit records, oldest first. A limit below
// one returns the whole log.
func (s *Service) History(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	if _, err := s.engine(); err != nil {
		return nil, err
	}
	records, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{StorageBackend: s.backend}
	if !s.started {
		return stats
	}

	stats.PendingDuels = s.registry.Len()
	stats.ResolvedCached = s.resolved.Size()
	stats.QueuedNotices = s.pool.Len(ctx)
	if n, err := s.store.Participants(ctx); err == nil {
		stats.Participants = n
	} else {
		s.logger.Warn(ctx, "stats: count participants failed", logger.Error(err))
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats.HistoryRecords = n
	} else {
		s.logger.Warn(ctx, "stats: count history failed", logger.Error(err))
	}

	metrics.UpdatePendingDuels(stats.PendingDuels)
	metrics.UpdateQueueSize(stats.QueuedNotices)
	return stats
}
