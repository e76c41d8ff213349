package discord

import (
	"fmt"
	"strings"

	"github.com/okian/duelist/internal/domain/duel"
)

const customIDPrefix = "duel"

// Button actions.
const (
	actionWin    = "win"
	actionRefuse = "refuse"
	actionCancel = "cancel"
)

// componentID is the decoded custom ID of a venue button:
// duel:<action>:<sessionID>[:side].
type componentID struct {
	Action    string
	SessionID string
	Side      duel.Side
}

func (c componentID) String() string {
	s := customIDPrefix + ":" + c.Action + ":" + c.SessionID
	if c.Action == actionWin {
		s += ":" + c.Side.String()
	}
	return s
}

func parseComponentID(s string) (componentID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || parts[0] != customIDPrefix || parts[2] == "" {
		return componentID{}, fmt.Errorf("%w: %q", ErrInvalidCustomID, s)
	}
	c := componentID{Action: parts[1], SessionID: parts[2]}
	switch c.Action {
	case actionWin:
		if len(parts) != 4 {
			return componentID{}, fmt.Errorf("%w: %q", ErrInvalidCustomID, s)
		}
		side, ok := duel.ParseSide(parts[3])
		if !ok {
			return componentID{}, fmt.Errorf("%w: side %q", ErrInvalidCustomID, parts[3])
		}
		c.Side = side
	case actionRefuse, actionCancel:
		if len(parts) != 3 {
			return componentID{}, fmt.Errorf("%w: %q", ErrInvalidCustomID, s)
		}
	default:
		return componentID{}, fmt.Errorf("%w: action %q", ErrInvalidCustomID, c.Action)
	}
	return c, nil
}
