// Package brain holds the decision providers castaways consult each morning:
// a frozen Q-network, a uniform random chooser, and an online Q-learning
// trainer, plus the policy file format the network is stored in.
package brain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/castaways/internal/agents"
)

// HiddenSize is the width of the network's single hidden layer.
const HiddenSize = 16

// ErrShapeMismatch is returned when a network's layer sizes do not match
// the observation and action sets.
var ErrShapeMismatch = errors.New("network shape mismatch")

// Network is a two-layer Q-network: observation → ReLU hidden → one
// Q-value per action. Weights are stored row-major.
type Network struct {
	Inputs  int
	Hidden  int
	Outputs int

	W1 []float64 // Hidden × Inputs
	B1 []float64
	W2 []float64 // Outputs × Hidden
	B2 []float64
}

// NewNetwork returns a network with the standard shape and weights drawn
// uniformly from ±1/sqrt(fan-in).
func NewNetwork(rng *rand.Rand) *Network {
	n := &Network{
		Inputs:  agents.ObservationSize,
		Hidden:  HiddenSize,
		Outputs: agents.NumActions,
	}
	n.W1 = uniformWeights(rng, n.Hidden*n.Inputs, n.Inputs)
	n.B1 = uniformWeights(rng, n.Hidden, n.Inputs)
	n.W2 = uniformWeights(rng, n.Outputs*n.Hidden, n.Hidden)
	n.B2 = uniformWeights(rng, n.Outputs, n.Hidden)
	return n
}

func uniformWeights(rng *rand.Rand, size, fanIn int) []float64 {
	bound := 1 / math.Sqrt(float64(fanIn))
	w := make([]float64, size)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	return w
}

// Validate checks the network against the fixed observation and action sets.
func (n *Network) Validate() error {
	if n.Inputs != agents.ObservationSize || n.Outputs != agents.NumActions || n.Hidden < 1 {
		return fmt.Errorf("%w: got %d→%d→%d, want %d→*→%d",
			ErrShapeMismatch, n.Inputs, n.Hidden, n.Outputs, agents.ObservationSize, agents.NumActions)
	}
	if len(n.W1) != n.Hidden*n.Inputs || len(n.B1) != n.Hidden ||
		len(n.W2) != n.Outputs*n.Hidden || len(n.B2) != n.Outputs {
		return fmt.Errorf("%w: weight slices do not match declared sizes", ErrShapeMismatch)
	}
	return nil
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	c := *n
	c.W1 = append([]float64(nil), n.W1...)
	c.B1 = append([]float64(nil), n.B1...)
	c.W2 = append([]float64(nil), n.W2...)
	c.B2 = append([]float64(nil), n.B2...)
	return &c
}

// QValues returns one value per action.
func (n *Network) QValues(obs agents.Observation) [agents.NumActions]float64 {
	q, _ := n.forward(obs)
	return q
}

// Best returns the action with the highest Q-value; ties go to the lower id.
func (n *Network) Best(obs agents.Observation) agents.Action {
	return argmax(n.QValues(obs))
}

func argmax(q [agents.NumActions]float64) agents.Action {
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return agents.Action(best)
}

func (n *Network) forward(obs agents.Observation) (q [agents.NumActions]float64, hidden []float64) {
	hidden = make([]float64, n.Hidden)
	for h := 0; h < n.Hidden; h++ {
		sum := n.B1[h]
		row := n.W1[h*n.Inputs : (h+1)*n.Inputs]
		for i, x := range obs {
			sum += row[i] * x
		}
		if sum > 0 {
			hidden[h] = sum
		}
	}
	for o := 0; o < n.Outputs; o++ {
		sum := n.B2[o]
		row := n.W2[o*n.Hidden : (o+1)*n.Hidden]
		for h, a := range hidden {
			sum += row[h] * a
		}
		q[o] = sum
	}
	return q, hidden
}

// step moves Q(obs, act) toward target by one gradient step on the squared
// error and returns the error before the step.
func (n *Network) step(obs agents.Observation, act agents.Action, target, lr, clip float64) float64 {
	q, hidden := n.forward(obs)
	tdErr := q[act] - target

	g := tdErr
	if clip > 0 {
		g = math.Max(-clip, math.Min(clip, g))
	}

	o := int(act)
	row := n.W2[o*n.Hidden : (o+1)*n.Hidden]
	for h := 0; h < n.Hidden; h++ {
		if hidden[h] <= 0 {
			continue
		}
		gradHidden := g * row[h]
		in := n.W1[h*n.Inputs : (h+1)*n.Inputs]
		for i, x := range obs {
			in[i] -= lr * gradHidden * x
		}
		n.B1[h] -= lr * gradHidden
		row[h] -= lr * g * hidden[h]
	}
	n.B2[o] -= lr * g
	return tdErr
}
