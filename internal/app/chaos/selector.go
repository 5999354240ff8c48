package chaos

import (
	"math/rand"

	"github.com/cosmocargo/project/internal/app/catalog"
)

// Selector picks a definition at random, weighted by each definition's
// Weight. The random source is injectable so selection is deterministic
// under test.
type Selector struct {
	Float64 func() float64
}

func NewSelector() Selector {
	return Selector{Float64: rand.Float64}
}

// Select returns nil when the list is empty or the total weight is not
// positive. Otherwise a roll in [0, total) is walked across the
// cumulative weights; the final entry catches any floating point
// shortfall at the top of the range.
func (s Selector) Select(defs []catalog.Definition) *catalog.Definition {
	if len(defs) == 0 {
		return nil
	}

	total := 0.0
	for _, def := range defs {
		total += def.Weight
	}
	if total <= 0 {
		return nil
	}

	roll := s.Float64() * total
	cumulative := 0.0
	for i := range defs {
		cumulative += defs[i].Weight
		if roll < cumulative {
			return &defs[i]
		}
	}
	return &defs[len(defs)-1]
}
