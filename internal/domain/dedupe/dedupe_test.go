package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/duelist/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
			So(d.Contains(ctx, "s-1"), ShouldBeFalse)
		})

		Convey("When an ID is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "s-1")
			second := d.SeenAndRecord(ctx, "s-1")

			Convey("Then only the first call reports it as new", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Contains(ctx, "s-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an ID is unrecorded", func() {
			d.SeenAndRecord(ctx, "s-1")
			d.Unrecord(ctx, "s-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "s-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more IDs than the limit are recorded", func() {
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("s-%d", i))
			}

			Convey("Then the oldest IDs are evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Contains(ctx, "s-0"), ShouldBeFalse)
				So(d.Contains(ctx, "s-1"), ShouldBeFalse)
				So(d.Contains(ctx, "s-2"), ShouldBeTrue)
				So(d.Contains(ctx, "s-4"), ShouldBeTrue)
			})
		})

		Convey("When an unrecorded slot is later overwritten", func() {
			d.SeenAndRecord(ctx, "a")
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")
			d.SeenAndRecord(ctx, "d")

			Convey("Then the size stays consistent", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Contains(ctx, "b"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 100; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("s-%d", i))
		}

		So(d.Size(), ShouldEqual, 100)
		So(d.Contains(ctx, "s-0"), ShouldBeTrue)
	})

	Convey("Given concurrent callers recording the same ID", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "race") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one caller wins", func() {
			So(fresh.Load(), ShouldEqual, 1)
		})
	})
}
