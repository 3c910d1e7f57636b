// Needs: how far the colony is from what it must hold, expressed as the
// saturating distance features agents observe and fitness is built from.
package agents

import (
	"math"

	"github.com/talgya/castaways/internal/economy"
)

// DistanceSharpness controls how quickly the distance feature decays as a
// shortfall grows relative to its objective.
const DistanceSharpness = 4.0

// Needs pairs a colony stock with its objective.
type Needs struct {
	Stock     economy.Stock
	Objective economy.Stock
}

// Shortfall returns objective minus stock per resource, floored at zero.
func (n Needs) Shortfall() economy.Stock {
	var s economy.Stock
	for _, r := range economy.Resources {
		if d := n.Objective[r] - n.Stock[r]; d > 0 {
			s[r] = d
		}
	}
	return s
}

// Distance returns exp(-k·clamp(shortfall/objective, 0, 1)) for r: 1 when
// the objective is met, falling towards e^-4 as stock runs out.
func (n Needs) Distance(r economy.Resource) float64 {
	obj := n.Objective[r]
	if obj <= 0 {
		return 1
	}
	ratio := float64(obj-n.Stock[r]) / float64(obj)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return math.Exp(-DistanceSharpness * ratio)
}

// Distances returns Distance for every resource.
func (n Needs) Distances() [economy.NumResources]float64 {
	var d [economy.NumResources]float64
	for _, r := range economy.Resources {
		d[r] = n.Distance(r)
	}
	return d
}

// Fitness is the weighted sum of distances. It never increases as any one
// shortfall grows.
func (n Needs) Fitness(weights [economy.NumResources]float64) float64 {
	total := 0.0
	for _, r := range economy.Resources {
		total += weights[r] * n.Distance(r)
	}
	return total
}
