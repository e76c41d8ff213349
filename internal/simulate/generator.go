package simulate

import (
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
)

// generator draws pairs and events from a seeded source.
type generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	cfg *Config
}

func newGenerator(cfg *Config) *generator {
	return &generator{rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)), cfg: cfg}
}

func participant(i int) model.Participant {
	// Offset into the snowflake range so IDs exercise the full width.
	id := model.ID(1<<62 + uint64(i))
	return model.Participant{ID: id, Label: "duelist-" + strconv.Itoa(i)}
}

// pair returns two distinct participants.
func (g *generator) pair() (model.Participant, model.Participant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.rng.IntN(g.cfg.Participants)
	b := g.rng.IntN(g.cfg.Participants - 1)
	if b >= a {
		b++
	}
	return participant(a), participant(b)
}

// event draws one racing event for a duel between c and o.
func (g *generator) event(c, o model.Participant) duel.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.rng.Float64()
	switch {
	case r < g.cfg.RefuseRatio:
		if g.rng.IntN(2) == 0 {
			return duel.Refuse(c)
		}
		return duel.Refuse(o)
	case r < g.cfg.RefuseRatio+g.cfg.CancelRatio:
		return duel.Cancel(c)
	default:
		if g.rng.IntN(2) == 0 {
			return duel.DeclareWin(duel.ChallengerSide)
		}
		return duel.DeclareWin(duel.OpponentSide)
	}
}
