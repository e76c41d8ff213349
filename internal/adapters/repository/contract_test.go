package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelist/internal/domain/model"
)

// testStoreContract exercises the behaviour every backend must share.
// The store must be empty and use the default max score of 30.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent identity reads as zero", func(t *testing.T) {
		v, err := s.Get(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 0 {
			t.Errorf("expected 0, got %d", v)
		}
	})

	t.Run("apply delta clamps to range", func(t *testing.T) {
		c, err := s.ApplyDelta(ctx, 2, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Old != 0 || c.New != 5 || c.Delta() != 5 {
			t.Errorf("unexpected change %+v", c)
		}

		c, err = s.ApplyDelta(ctx, 2, -9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Old != 5 || c.New != 0 {
			t.Errorf("expected floor at 0, got %+v", c)
		}

		c, err = s.ApplyDelta(ctx, 2, 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.New != 30 {
			t.Errorf("expected clamp at 30, got %d", c.New)
		}
	})

	t.Run("update reads and writes identities in request order", func(t *testing.T) {
		if _, err := s.ApplyDelta(ctx, 10, 11); err != nil {
			t.Fatal(err)
		}
		if _, err := s.ApplyDelta(ctx, 3, 1); err != nil {
			t.Fatal(err)
		}
		var seen []int
		changes, err := s.Update(ctx, []model.ID{10, 3}, func(cur []int) ([]int, error) {
			seen = append(seen, cur...)
			return []int{cur[0] - 1, cur[1] + 3}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 2 || seen[0] != 11 || seen[1] != 1 {
			t.Errorf("unexpected current scores %v", seen)
		}
		if changes[0].ID != 10 || changes[0].New != 10 || changes[1].ID != 3 || changes[1].New != 4 {
			t.Errorf("unexpected changes %+v", changes)
		}
	})

	t.Run("update rejects duplicates and aborts on callback error", func(t *testing.T) {
		_, err := s.Update(ctx, []model.ID{4, 4}, func(cur []int) ([]int, error) { return cur, nil })
		if !errors.Is(err, ErrInvalidUpdate) {
			t.Errorf("expected ErrInvalidUpdate, got %v", err)
		}

		boom := errors.New("boom")
		_, err = s.Update(ctx, []model.ID{4}, func(cur []int) ([]int, error) { return []int{9}, boom })
		if !errors.Is(err, boom) {
			t.Errorf("expected callback error, got %v", err)
		}
		if v, _ := s.Get(ctx, 4); v != 0 {
			t.Errorf("aborted update must not write, got %d", v)
		}

		_, err = s.Update(ctx, []model.ID{4}, func(cur []int) ([]int, error) { return nil, nil })
		if !errors.Is(err, ErrInvalidUpdate) {
			t.Errorf("expected ErrInvalidUpdate for short result, got %v", err)
		}
	})

	t.Run("concurrent deltas on one identity serialise", func(t *testing.T) {
		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ApplyDelta(ctx, 77, 1); err != nil {
					t.Errorf("apply delta: %v", err)
				}
			}()
		}
		wg.Wait()
		if v, _ := s.Get(ctx, 77); v != workers {
			t.Errorf("expected %d, got %d", workers, v)
		}
	})

	t.Run("first write of an identity is flagged", func(t *testing.T) {
		c, err := s.ApplyDelta(ctx, 500, -3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.First || c.New != 0 {
			t.Errorf("expected first write at zero, got %+v", c)
		}
		c, err = s.ApplyDelta(ctx, 500, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.First {
			t.Errorf("identity stored at zero must not be first again, got %+v", c)
		}
	})

	t.Run("scores lists every stored identity", func(t *testing.T) {
		all, err := s.Scores(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if all[2] != 30 || all[77] != 20 || all[10] != 10 {
			t.Errorf("unexpected snapshot %v", all)
		}
		if _, ok := all[1]; ok {
			t.Error("identity that was only read must not be stored")
		}
		n, err := s.Participants(ctx)
		if err != nil {
			t.Fatalf("participants: %v", err)
		}
		if n != len(all) {
			t.Errorf("expected %d participants, got %d", len(all), n)
		}
	})

	t.Run("history preserves append order", func(t *testing.T) {
		if n, err := s.Count(ctx); err != nil || n != 0 {
			t.Fatalf("expected empty history, got %d (%v)", n, err)
		}
		ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		winner := model.ID(5)
		for i := 0; i < 3; i++ {
			rec := model.HistoryRecord{
				SessionID:      fmt.Sprintf("s-%d", i),
				Challenger:     5,
				ChallengerName: "alice",
				Opponent:       6,
				OpponentName:   "bob",
				Accepted:       i != 1,
				PointsWon:      i,
				Timestamp:      ts.Add(time.Duration(i) * time.Second),
			}
			if i != 1 {
				rec.Winner = &winner
			}
			if err := s.Append(ctx, rec); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		recs, err := s.ReadAll(ctx)
		if err != nil {
			t.Fatalf("read all: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(recs))
		}
		if n, err := s.Count(ctx); err != nil || n != 3 {
			t.Errorf("expected count 3, got %d (%v)", n, err)
		}
		for i, rec := range recs {
			if rec.SessionID != fmt.Sprintf("s-%d", i) {
				t.Errorf("record %d out of order: %s", i, rec.SessionID)
			}
			if !rec.Timestamp.Equal(ts.Add(time.Duration(i) * time.Second)) {
				t.Errorf("record %d timestamp %v", i, rec.Timestamp)
			}
		}
		if recs[1].Winner != nil || recs[1].Accepted {
			t.Errorf("expected refusal without winner, got %+v", recs[1])
		}
		if recs[0].Winner == nil || *recs[0].Winner != 5 || recs[0].ChallengerName != "alice" {
			t.Errorf("unexpected record %+v", recs[0])
		}

		*recs[0].Winner = 99
		again, err := s.ReadAll(ctx)
		if err != nil {
			t.Fatalf("read all: %v", err)
		}
		if *again[0].Winner != 5 {
			t.Errorf("stored record changed through a read copy: winner %d", *again[0].Winner)
		}
	})
}
