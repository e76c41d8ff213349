package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/duelist/internal/app"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
	"github.com/okian/duelist/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

var (
	alice = model.Participant{ID: 1, Label: "alice"}
	bob   = model.Participant{ID: 2, Label: "bob"}
	carol = model.Participant{ID: 3, Label: "carol"}
)

// platform records every collaborator call.
type platform struct {
	mu     sync.Mutex
	calls  []string
	venues int
}

func (p *platform) add(format string, args ...any) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *platform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *platform) CreateDuelVenue(_ context.Context, c, o model.Participant) (model.Venue, error) {
	p.mu.Lock()
	p.venues++
	id := fmt.Sprintf("venue-%d", p.venues)
	p.mu.Unlock()
	return model.Venue{ID: id, Name: c.Name() + " vs " + o.Name()}, nil
}

func (p *platform) DeleteVenue(_ context.Context, v model.Venue) error {
	p.add("delete %s", v.ID)
	return nil
}

func (p *platform) AnnounceDuelCreated(_ context.Context, s duel.Snapshot) error {
	p.add("created %s", s.Venue.ID)
	return nil
}

func (p *platform) AnnounceOutcome(_ context.Context, out duel.Outcome) error {
	p.add("outcome %s", out.Resolution)
	return nil
}

func (p *platform) AnnounceRankChange(_ context.Context, pt model.Participant, _, to rank.Rank) error {
	p.add("rank %s %s", pt.Name(), to.Name)
	return nil
}

func (p *platform) AnnounceError(_ context.Context, v model.Venue, err error) error {
	p.add("error %s", v.ID)
	return nil
}

func (p *platform) Assign(_ context.Context, id model.ID, r rank.Rank) error {
	p.add("assign %s %s", id, r.Name)
	return nil
}

func (p *platform) Unassign(_ context.Context, id model.ID, r rank.Rank) error {
	p.add("unassign %s %s", id, r.Name)
	return nil
}

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.StorageBackend = config.BackendMemory
	return cfg
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithConfig(memoryConfig()))
		ctx := context.Background()

		Convey("Then engine operations fail", func() {
			_, err := svc.CreateDuel(ctx, alice, bob)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Dispatch(ctx, "x", duel.Cancel(alice))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Pending(ctx), ShouldBeEmpty)
		})

		Convey("Then stopping is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a service with an invalid rank table", t, func() {
		cfg := memoryConfig()
		cfg.RankNames = nil
		svc := service.New(service.WithConfig(cfg))

		Convey("Then it refuses to start", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})

	Convey("Given a service with an unknown backend", t, func() {
		cfg := memoryConfig()
		cfg.StorageBackend = "etcd"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then it refuses to start", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrBackend), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithConfig(memoryConfig()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("Then stats report the backend", func() {
			st := svc.GetStats(ctx)
			So(st.StorageBackend, ShouldEqual, config.BackendMemory)
			So(st.PendingDuels, ShouldEqual, 0)
		})
	})
}

func TestService_Duels(t *testing.T) {
	Convey("Given a started service with a chat platform", t, func() {
		ctx := context.Background()
		p := &platform{}
		svc := service.New(
			service.WithConfig(memoryConfig()),
			service.WithPlatform(p, p, p),
		)
		So(svc.Start(ctx), ShouldBeNil)

		d, err := svc.CreateDuel(ctx, alice, bob)
		So(err, ShouldBeNil)

		Convey("When the challenger wins", func() {
			out, err := svc.Dispatch(ctx, d.ID, duel.DeclareWin(duel.ChallengerSide))
			So(err, ShouldBeNil)

			Convey("Then scores and history are updated", func() {
				So(out.Resolution, ShouldEqual, "win")
				So(out.Winner.ID, ShouldEqual, "1")
				So(out.PointsWon, ShouldEqual, 1)

				st, err := svc.Standing(ctx, alice.ID)
				So(err, ShouldBeNil)
				So(st.Score, ShouldEqual, 1)
				So(st.Rank, ShouldEqual, "Initiate")

				hist, err := svc.History(ctx, 10)
				So(err, ShouldBeNil)
				So(hist, ShouldHaveLength, 1)
				So(hist[0].SessionID, ShouldEqual, d.ID)
				So(hist[0].Accepted, ShouldBeTrue)

				So(svc.Pending(ctx), ShouldBeEmpty)
			})

			Convey("Then a second result is rejected", func() {
				_, err := svc.Dispatch(ctx, d.ID, duel.DeclareWin(duel.OpponentSide))
				So(errors.Is(err, duel.ErrAlreadyResolved), ShouldBeTrue)

				st, _ := svc.Standing(ctx, bob.ID)
				So(st.Score, ShouldEqual, 0)
			})

			Convey("Then venue notices are delivered in order once drained", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				calls := p.Calls()
				var venueCalls []string
				for _, c := range calls {
					switch c {
					case "created venue-1", "outcome win", "delete venue-1":
						venueCalls = append(venueCalls, c)
					}
				}
				So(venueCalls, ShouldResemble, []string{"created venue-1", "outcome win", "delete venue-1"})
				So(calls, ShouldContain, "assign 1 Initiate")
			})
		})

		Convey("When the same pair is challenged again", func() {
			_, err := svc.CreateDuel(ctx, bob, alice)
			So(errors.Is(err, duel.ErrDuplicateDuel), ShouldBeTrue)
		})

		Convey("When other duels are pending", func() {
			_, err := svc.CreateDuel(ctx, alice, carol)
			So(err, ShouldBeNil)

			Convey("Then they are all listed", func() {
				pending := svc.Pending(ctx)
				So(pending, ShouldHaveLength, 2)
				So([]string{pending[0].ID, pending[1].ID}, ShouldContain, d.ID)
				So(svc.GetStats(ctx).PendingDuels, ShouldEqual, 2)
			})
		})

		Reset(func() { _ = svc.Stop(ctx) })
	})
}

func TestService_History(t *testing.T) {
	Convey("Given several resolved duels", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithConfig(memoryConfig()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		var ids []string
		for i := 0; i < 5; i++ {
			d, err := svc.CreateDuel(ctx, alice, bob)
			So(err, ShouldBeNil)
			_, err = svc.Dispatch(ctx, d.ID, duel.Refuse(bob))
			So(err, ShouldBeNil)
			ids = append(ids, d.ID)
		}

		Convey("Then a limit keeps the newest records in order", func() {
			hist, err := svc.History(ctx, 2)
			So(err, ShouldBeNil)
			So(hist, ShouldHaveLength, 2)
			So(hist[0].SessionID, ShouldEqual, ids[3])
			So(hist[1].SessionID, ShouldEqual, ids[4])
		})

		Convey("Then no limit returns everything", func() {
			hist, err := svc.History(ctx, 0)
			So(err, ShouldBeNil)
			So(hist, ShouldHaveLength, 5)
			So(svc.GetStats(ctx).HistoryRecords, ShouldEqual, 5)
		})
	})
}

func TestService_Expiry(t *testing.T) {
	Convey("Given a service with a duel TTL", t, func() {
		ctx := context.Background()
		cfg := memoryConfig()
		cfg.DuelTTL = time.Millisecond
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		_, err := svc.CreateDuel(ctx, alice, bob)
		So(err, ShouldBeNil)

		Convey("Then stale duels are cancelled without scoring", func() {
			deadline := time.Now().Add(5 * time.Second)
			for len(svc.Pending(ctx)) > 0 && time.Now().Before(deadline) {
				time.Sleep(50 * time.Millisecond)
			}
			So(svc.Pending(ctx), ShouldBeEmpty)

			hist, err := svc.History(ctx, 0)
			So(err, ShouldBeNil)
			So(hist, ShouldBeEmpty)
		})
	})
}
