package agents

import (
	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/weather"
)

// ObservationSize is the fixed width of an Observation.
const ObservationSize = weather.NumKinds + economy.NumResources + 1 + 2*economy.NumEquipment

// Feature offsets within an Observation.
const (
	OffsetWeather       = 0
	OffsetDistance      = OffsetWeather + weather.NumKinds
	OffsetWreckInterest = OffsetDistance + economy.NumResources
	OffsetOwnEquipment  = OffsetWreckInterest + 1
	OffsetOthersEquip   = OffsetOwnEquipment + economy.NumEquipment
)

// Observation is the feature vector handed to a decision provider:
//
//	[0..3]   weather one-hot (clear, cloudy, raining, storm)
//	[4..6]   distance to objective for water, wood, food
//	[7]      wreck interest
//	[8..10]  own bucket, axe, fishing rod flags
//	[11..13] share of other living members holding each kind
//
// Every feature lies in [0, 1].
type Observation [ObservationSize]float64

// BuildObservation assembles an Observation from explicit views.
func BuildObservation(w weather.Kind, wreckInterest float64, own economy.Inventory, o Outlook) Observation {
	var obs Observation
	oneHot := w.OneHot()
	copy(obs[OffsetWeather:], oneHot[:])
	copy(obs[OffsetDistance:], o.Distance[:])
	obs[OffsetWreckInterest] = clamp01(wreckInterest)
	for _, e := range economy.EquipmentKinds {
		if own.Has(e) {
			obs[OffsetOwnEquipment+int(e)] = 1
		}
		obs[OffsetOthersEquip+int(e)] = clamp01(o.OthersEquipped[e])
	}
	return obs
}

// Observe builds the agent's current observation.
func (a *Agent) Observe() Observation {
	return BuildObservation(a.env.Weather(), a.env.WreckInterest(), a.inventory, a.home.Outlook(a.ID))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
