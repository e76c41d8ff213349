package duel_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/duelist/internal/adapters/repository"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/internal/domain/scoring"
	"github.com/okian/duelist/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

var (
	alice = model.Participant{ID: 1, Label: "alice"}
	bob   = model.Participant{ID: 2, Label: "bob"}
	carol = model.Participant{ID: 3, Label: "carol"}
	staff = model.Participant{ID: 99, Label: "staff"}

	errPlatform = errors.New("platform unavailable")
)

// flakyStore fails the next N score updates or history appends.
type flakyStore struct {
	*repository.MemoryStore
	failUpdates atomic.Int32
	failAppends atomic.Int32
	updates     atomic.Int32
}

func (f *flakyStore) Update(ctx context.Context, ids []model.ID, fn repository.UpdateFunc) ([]repository.Change, error) {
	if f.failUpdates.Load() > 0 {
		f.failUpdates.Add(-1)
		return nil, fmt.Errorf("%w: disk gone", repository.ErrStoreUnavailable)
	}
	f.updates.Add(1)
	return f.MemoryStore.Update(ctx, ids, fn)
}

func (f *flakyStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	if f.failAppends.Load() > 0 {
		f.failAppends.Add(-1)
		return fmt.Errorf("%w: disk gone", repository.ErrStoreUnavailable)
	}
	return f.MemoryStore.Append(ctx, rec)
}

// recorder implements every collaborator and records the calls it receives.
type recorder struct {
	mu    sync.Mutex
	calls []string

	failCreate   bool
	duringCreate func()
	failOutcome  bool
	failDelete   bool
	errorReports int
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) ErrorReports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorReports
}

func (r *recorder) CreateDuelVenue(_ context.Context, c, o model.Participant) (model.Venue, error) {
	if r.failCreate {
		return model.Venue{}, errPlatform
	}
	r.add("create %s %s", c.Label, o.Label)
	if r.duringCreate != nil {
		r.duringCreate()
	}
	return model.Venue{ID: "venue-" + c.Label + "-" + o.Label, Name: c.Label + " vs " + o.Label}, nil
}

func (r *recorder) DeleteVenue(_ context.Context, v model.Venue) error {
	r.add("delete %s", v.ID)
	if r.failDelete {
		return errPlatform
	}
	return nil
}

func (r *recorder) AnnounceDuelCreated(_ context.Context, s duel.Snapshot) error {
	r.add("announce_created %s", s.Venue.ID)
	return nil
}

func (r *recorder) AnnounceOutcome(_ context.Context, out duel.Outcome) error {
	r.add("announce_outcome %s", out.Resolution)
	if r.failOutcome {
		return errPlatform
	}
	return nil
}

func (r *recorder) AnnounceRankChange(_ context.Context, p model.Participant, from, to rank.Rank) error {
	r.add("announce_rank %s %s->%s", p.Label, from.Name, to.Name)
	return nil
}

func (r *recorder) AnnounceError(_ context.Context, v model.Venue, err error) error {
	r.mu.Lock()
	r.errorReports++
	r.mu.Unlock()
	r.add("announce_error %s", v.ID)
	return nil
}

func (r *recorder) Assign(_ context.Context, id model.ID, rk rank.Rank) error {
	r.add("assign %d %s", id, rk.Name)
	return nil
}

func (r *recorder) Unassign(_ context.Context, id model.ID, rk rank.Rank) error {
	r.add("unassign %d %s", id, rk.Name)
	return nil
}

type fixture struct {
	store *flakyStore
	rec   *recorder
	reg   *duel.Registry
}

func newFixture(t *testing.T, opts ...duel.Option) *fixture {
	t.Helper()
	table, err := rank.NewTable(30, 5, []string{"Initiate", "Duelist", "Gladiator", "Champion", "Warlord", "Legend"})
	if err != nil {
		t.Fatalf("rank table: %v", err)
	}
	f := &fixture{
		store: &flakyStore{MemoryStore: repository.NewMemoryStore()},
		rec:   &recorder{},
	}
	base := []duel.Option{
		duel.WithChannelProvider(f.rec),
		duel.WithNotifier(f.rec),
		duel.WithRoleAssigner(f.rec),
	}
	f.reg = duel.NewRegistry(f.store, f.store, table, scoring.NewBandScorer(table), append(base, opts...)...)
	return f
}

func (f *fixture) seed(t *testing.T, id model.ID, score int) {
	t.Helper()
	if _, err := f.store.MemoryStore.ApplyDelta(context.Background(), id, score); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) score(id model.ID) int {
	v, _ := f.store.Get(context.Background(), id)
	return v
}

func (f *fixture) history() []model.HistoryRecord {
	recs, _ := f.store.ReadAll(context.Background())
	return recs
}
