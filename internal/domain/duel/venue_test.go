package duel_test

import (
	"testing"
	"time"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVenueName(t *testing.T) {
	Convey("Given two participants and a local timestamp", t, func() {
		loc := time.FixedZone("CET", 3600)
		at := time.Date(2024, 3, 9, 14, 5, 7, 0, loc)

		name := duel.VenueName(alice, model.Participant{ID: 2}, at)

		Convey("Then the name uses labels, falls back to IDs and renders UTC", func() {
			So(name, ShouldEqual, "alice vs 2 - 2024-03-09 @ 13:05:07")
		})
	})

	Convey("Given side names", t, func() {
		side, ok := duel.ParseSide("opponent")
		So(ok, ShouldBeTrue)
		So(side, ShouldEqual, duel.OpponentSide)
		_, ok = duel.ParseSide("referee")
		So(ok, ShouldBeFalse)
		So(duel.ChallengerSide.String(), ShouldEqual, "challenger")
	})
}
