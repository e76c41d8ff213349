// Package simulate drives many concurrent duels against an in-process
// engine and checks the engine's consistency guarantees afterwards.
package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	service "github.com/okian/duelist/internal/app"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrInvalidConfig is returned for unusable simulation settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

func (c *Config) validate() error {
	switch {
	case c.Participants < 2:
		return fmt.Errorf("%w: need at least two participants", ErrInvalidConfig)
	case c.Duels < 1 || c.Workers < 1 || c.Racers < 1:
		return fmt.Errorf("%w: duels, workers and racers must be positive", ErrInvalidConfig)
	case c.RefuseRatio < 0 || c.CancelRatio < 0 || c.RefuseRatio+c.CancelRatio > 1:
		return fmt.Errorf("%w: event ratios must lie in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// counters is the mutable part of Stats shared by drivers.
type counters struct {
	mu sync.Mutex
	s  *Stats
}

func (c *counters) add(fn func(s *Stats)) {
	c.mu.Lock()
	fn(c.s)
	c.mu.Unlock()
}

// Run executes a simulation and verifies the outcome.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	svcCfg := config.New()
	svcCfg.StorageBackend = config.BackendMemory
	if svcCfg.ResolvedCacheSize < cfg.Duels {
		svcCfg.ResolvedCacheSize = cfg.Duels
	}
	svc := service.New(service.WithConfig(svcCfg))
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	defer func() { _ = svc.Stop(context.Background()) }()

	log.Info(ctx, "starting duel simulation",
		logger.Int("participants", cfg.Participants),
		logger.Int("duels", cfg.Duels),
		logger.Int("workers", cfg.Workers),
		logger.Int("racers", cfg.Racers))

	gen := newGenerator(cfg)
	c := &counters{s: stats}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				runDuel(ctx, svc, gen, cfg, c, log, n)
			}
		}()
	}
	for n := 0; n < cfg.Duels; n++ {
		select {
		case jobs <- n:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("simulation interrupted: %w", err)
	}

	if err := verify(ctx, svc, svcCfg, cfg, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveHistory(ctx, svc, cfg.OutputFile); err != nil {
			log.Warn(ctx, "failed to save history", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// runDuel creates one duel and races cfg.Racers events at it.
func runDuel(ctx context.Context, svc *service.Service, gen *generator, cfg *Config, c *counters, log logger.Logger, n int) {
	challenger, opponent := gen.pair()
	d, err := svc.CreateDuel(ctx, challenger, opponent)
	if err != nil {
		if errors.Is(err, duel.ErrDuplicateDuel) || errors.Is(err, duel.ErrParticipantBusy) {
			c.add(func(s *Stats) { s.CreateRejected++ })
			return
		}
		log.Error(ctx, "create failed", logger.Int("duel", n), logger.Error(err))
		c.add(func(s *Stats) { s.UnexpectedErrors++ })
		return
	}
	c.add(func(s *Stats) { s.DuelsCreated++ })

	var wg sync.WaitGroup
	for r := 0; r < cfg.Racers; r++ {
		ev := gen.event(challenger, opponent)
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Dispatch(ctx, d.ID, ev)
			c.add(func(s *Stats) {
				s.Dispatches++
				switch {
				case err == nil:
					switch out.Resolution {
					case duel.WinDeclared.String():
						s.Wins++
					case duel.Refused.String():
						s.Refusals++
					case duel.Cancelled.String():
						s.Cancellations++
					}
				case errors.Is(err, duel.ErrAlreadyResolved):
					s.LostRaces++
				default:
					s.UnexpectedErrors++
				}
			})
			if err != nil && !errors.Is(err, duel.ErrAlreadyResolved) {
				log.Error(ctx, "dispatch failed", logger.String("session", d.ID), logger.Error(err))
			}
			if err == nil && cfg.Verbose {
				log.Info(ctx, "duel resolved",
					logger.Int("duel", n),
					logger.String("session", d.ID),
					logger.String("resolution", out.Resolution),
					logger.Int("points", out.PointsWon))
			}
		}()
	}
	wg.Wait()
}

// saveHistory writes the history log as a JSON array.
func saveHistory(ctx context.Context, svc *service.Service, filename string) error {
	records, err := svc.History(ctx, 0)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	logger.Get().Info(ctx, "history saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var duelsPerSecond float64
	if stats.Duration > 0 {
		duelsPerSecond = float64(stats.DuelsCreated) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("duelsCreated", stats.DuelsCreated),
		logger.Int("createRejected", stats.CreateRejected),
		logger.Int("dispatches", stats.Dispatches),
		logger.Int("wins", stats.Wins),
		logger.Int("refusals", stats.Refusals),
		logger.Int("cancellations", stats.Cancellations),
		logger.Int("lostRaces", stats.LostRaces),
		logger.Int("historyRecords", stats.HistoryRecords),
		logger.Int("participants", stats.Participants),
		logger.Duration("duration", stats.Duration),
		logger.Float64("duelsPerSecond", duelsPerSecond))
}
