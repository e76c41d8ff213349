package simulate

import (
	"context"
	"errors"
	"fmt"

	service "github.com/okian/duelist/internal/app"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/internal/domain/scoring"
)

// ErrVerification is returned when a run breaks an engine guarantee.
var ErrVerification = errors.New("simulation verification failed")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVerification, fmt.Sprintf(format, args...))
}

// verify checks that every created duel resolved exactly once, that the
// history log matches the resolutions, and that scores stayed in range.
// With a single worker duels commit sequentially and the history is
// replayed to reproduce every final score.
func verify(ctx context.Context, svc *service.Service, svcCfg *config.Config, cfg *Config, stats *Stats) error {
	if pending := svc.Pending(ctx); len(pending) != 0 {
		return violation("%d duels still pending", len(pending))
	}
	if stats.UnexpectedErrors != 0 {
		return violation("%d unexpected errors", stats.UnexpectedErrors)
	}
	resolved := stats.Wins + stats.Refusals + stats.Cancellations
	if resolved != stats.DuelsCreated {
		return violation("%d duels created but %d resolutions", stats.DuelsCreated, resolved)
	}
	if stats.LostRaces != stats.Dispatches-resolved {
		return violation("%d lost races, want %d", stats.LostRaces, stats.Dispatches-resolved)
	}

	records, err := svc.History(ctx, 0)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	stats.HistoryRecords = len(records)
	if len(records) != stats.Wins+stats.Refusals {
		return violation("%d history records for %d scored duels", len(records), stats.Wins+stats.Refusals)
	}
	if err := checkRecords(records, len(svcCfg.RankNames)); err != nil {
		return err
	}

	scores := make(map[model.ID]int, cfg.Participants)
	for i := 0; i < cfg.Participants; i++ {
		p := participant(i)
		st, err := svc.Standing(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("read standing: %w", err)
		}
		if st.Score < 0 || st.Score > svcCfg.MaxScore {
			return violation("participant %s has score %d outside [0,%d]", p.ID, st.Score, svcCfg.MaxScore)
		}
		if st.Score > 0 {
			stats.Participants++
		}
		scores[p.ID] = st.Score
	}

	if cfg.Workers == 1 {
		return replay(records, scores, svcCfg)
	}
	return nil
}

func checkRecords(records []model.HistoryRecord, ranks int) error {
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if _, dup := seen[rec.SessionID]; dup {
			return violation("session %s recorded twice", rec.SessionID)
		}
		seen[rec.SessionID] = struct{}{}

		if rec.Winner == nil || (*rec.Winner != rec.Challenger && *rec.Winner != rec.Opponent) {
			return violation("record %d names no duelist as winner", i)
		}
		if rec.Accepted {
			if rec.PointsWon < 1 || rec.PointsWon > ranks {
				return violation("record %d awards %d points", i, rec.PointsWon)
			}
		} else if rec.PointsWon != 0 {
			return violation("refusal record %d awards %d points", i, rec.PointsWon)
		}
	}
	return nil
}

// replay applies the history from zero and compares with the final scores.
func replay(records []model.HistoryRecord, final map[model.ID]int, svcCfg *config.Config) error {
	table, err := rank.NewTable(svcCfg.MaxScore, svcCfg.BandWidth, svcCfg.RankNames)
	if err != nil {
		return err
	}
	scorer := scoring.NewBandScorer(table,
		scoring.WithRefusalPenalty(svcCfg.RefusalPenalty),
		scoring.WithLossPenalty(svcCfg.LossPenalty),
	)

	scores := make(map[model.ID]int, len(final))
	for i, rec := range records {
		winner := *rec.Winner
		other := rec.Challenger
		if winner == rec.Challenger {
			other = rec.Opponent
		}
		if rec.Accepted {
			res := scorer.Win(scores[winner], scores[other])
			if res.PointsWon != rec.PointsWon {
				return violation("record %d: replay awards %d points, log says %d", i, res.PointsWon, rec.PointsWon)
			}
			scores[winner], scores[other] = res.WinnerScore, res.LoserScore
		} else {
			// The refuser is the duelist who did not win.
			scores[other] = scorer.Refuse(scores[other])
		}
	}

	for id, want := range final {
		if scores[id] != want {
			return violation("participant %s: replayed score %d, stored %d", id, scores[id], want)
		}
	}
	return nil
}
