package profile

import (
	"fmt"
	"math"

	"github.com/poiesic/articlevec/core"
)

// ActionWeights maps an interaction action to the weight of its vector.
// Actions missing from the table weigh zero and are left out.
type ActionWeights map[core.Action]float64

// DefaultActionWeights returns scrap 1.5, click 1.0 and search 0.8.
func DefaultActionWeights() ActionWeights {
	return ActionWeights{
		core.ActionScrap:  1.5,
		core.ActionClick:  1.0,
		core.ActionSearch: 0.8,
	}
}

// Weight returns the weight of action, 0 when unknown.
func (w ActionWeights) Weight(action core.Action) float64 {
	return w[action]
}

// Validate rejects negative or non-finite weights.
func (w ActionWeights) Validate() error {
	for action, weight := range w {
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("action %q has invalid weight %v", action, weight)
		}
	}
	return nil
}
