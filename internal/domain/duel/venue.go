package duel

import (
	"fmt"
	"time"

	"github.com/okian/duelist/internal/domain/model"
)

const venueTimeLayout = "2006-01-02 @ 15:04:05"

func nowUTC() time.Time { return time.Now().UTC() }

// VenueName formats "<challenger> vs <opponent> - YYYY-MM-DD @ HH:MM:SS" in UTC.
func VenueName(challenger, opponent model.Participant, at time.Time) string {
	return fmt.Sprintf("%s vs %s - %s", challenger.Name(), opponent.Name(), at.UTC().Format(venueTimeLayout))
}
