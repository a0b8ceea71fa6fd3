package topology

import (
	"fmt"
	"math"

	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/world"
)

// Params configures network generation.
type Params struct {
	// Columns is the number of cortical columns. Default: 20.
	Columns int

	// LayerSizes is the neuron count per layer in each column.
	// Default: 60 internal, 10 for every other layer.
	LayerSizes map[world.Layer]int

	// LayerModels selects the neuron model per layer. Missing layers use Izhikevich.
	LayerModels map[world.Layer]world.Model

	// Table holds the connection probabilities.
	Table Table

	// DelayMin and DelayMax bound the conduction delay in ticks: [DelayMin, DelayMax).
	DelayMin int
	DelayMax int

	// StrengthMin and StrengthMax bound the synaptic strength magnitude: [min, max).
	StrengthMin float64
	StrengthMax float64

	// ExcitatoryFraction is the probability that a new synapse is excitatory. Default: 0.8.
	ExcitatoryFraction float64

	// AllowSelf permits a neuron to synapse onto itself. Default: false.
	AllowSelf bool

	Izhikevich           world.IzhikevichMorphology
	HindmarshRose        world.HindmarshRoseMorphology
	HindmarshRoseInitial world.HindmarshRoseState
}

// DefaultParams returns the parameters of the standard 20-column network of
// regular-spiking Izhikevich neurons.
func DefaultParams() Params {
	sizes := make(map[world.Layer]int, len(world.Layers))
	for _, l := range world.Layers {
		sizes[l] = 10
	}
	sizes[world.Internal] = 60

	return Params{
		Columns:            20,
		LayerSizes:         sizes,
		LayerModels:        map[world.Layer]world.Model{},
		Table:              DefaultTable(),
		DelayMin:           1,
		DelayMax:           20,
		StrengthMin:        0.5,
		StrengthMax:        4.0,
		ExcitatoryFraction: 0.8,
		Izhikevich:         world.IzhikevichMorphology{A: 0.02, B: 0.2, C: -65, D: 2},
		HindmarshRose: world.HindmarshRoseMorphology{
			A: 1, B: 3, C: 1, D: 5, Beta: 1, R: 0.001, S: 4, XR: -1.6, TS: 0.1, EPSPAmp: 0.1,
		},
		HindmarshRoseInitial: world.HindmarshRoseState{X: -1.6, Y: -10},
	}
}

// ParamError reports an invalid generation parameter.
type ParamError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("topology: %s %s", e.Field, e.Reason)
}

// Validate checks the parameters before any neuron is created.
// Comparisons are written so that NaN fails them.
func (p Params) Validate() error {
	if p.Columns < 1 {
		return &ParamError{Field: "columns", Reason: fmt.Sprintf("must be at least 1, got %d", p.Columns)}
	}
	for l, n := range p.LayerSizes {
		if n < 0 {
			return &ParamError{Field: "layer_sizes." + l.String(), Reason: fmt.Sprintf("must be non-negative, got %d", n)}
		}
	}
	if p.DelayMin < 1 {
		return &ParamError{Field: "delay_min", Reason: fmt.Sprintf("must be at least 1, got %d", p.DelayMin)}
	}
	if p.DelayMax <= p.DelayMin {
		return &ParamError{Field: "delay_max", Reason: fmt.Sprintf("must exceed delay_min (%d), got %d", p.DelayMin, p.DelayMax)}
	}
	if !(p.StrengthMin >= 0 && p.StrengthMax >= p.StrengthMin) || math.IsInf(p.StrengthMax, 0) {
		return &ParamError{Field: "strength", Reason: fmt.Sprintf("range [%g, %g) is invalid", p.StrengthMin, p.StrengthMax)}
	}
	if !(p.ExcitatoryFraction >= 0 && p.ExcitatoryFraction <= 1) {
		return &ParamError{Field: "excitatory_fraction", Reason: fmt.Sprintf("must be in [0, 1], got %g", p.ExcitatoryFraction)}
	}
	for k, prob := range p.Table {
		if !(prob >= 0 && prob <= 1) {
			return &ParamError{
				Field:  fmt.Sprintf("table[%v %s->%s]", k.SameColumn, k.Pre, k.Post),
				Reason: fmt.Sprintf("probability must be in [0, 1], got %g", prob),
			}
		}
	}
	if err := p.Izhikevich.Validate(); err != nil {
		return &ParamError{Field: "morphology", Reason: err.Error()}
	}
	if err := p.HindmarshRose.Validate(); err != nil {
		return &ParamError{Field: "morphology", Reason: err.Error()}
	}
	return nil
}

// Summary describes a generated network.
type Summary struct {
	Neurons    int             `json:"neurons"`
	Synapses   int             `json:"synapses"`
	Excitatory int             `json:"excitatory"`
	Inhibitory int             `json:"inhibitory"`
	ByPair     map[PairKey]int `json:"-"`
}

// Generate creates the column population in s and wires it. Neurons are
// created column by column in world.Layers order; every ordered pair of
// distinct neurons (and self pairs when AllowSelf is set) is offered a
// Bernoulli trial with the table's probability.
func Generate(s *world.Store, p Params, sampler *rng.Sampler) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}

	var coords []world.ColumnCoordinates
	for column := 0; column < p.Columns; column++ {
		for _, layer := range world.Layers {
			for i := 0; i < p.LayerSizes[layer]; i++ {
				c := world.ColumnCoordinates{Column: column, Layer: layer}
				if err := addNeuron(s, p, c); err != nil {
					return Summary{}, err
				}
				coords = append(coords, c)
			}
		}
	}

	summary := Summary{Neurons: len(coords), ByPair: make(map[PairKey]int)}
	for pre := range coords {
		for post := range coords {
			if pre == post && !p.AllowSelf {
				continue
			}
			key := PairKey{
				SameColumn: coords[pre].Column == coords[post].Column,
				Pre:        coords[pre].Layer,
				Post:       coords[post].Layer,
			}
			prob := p.Table[key]
			if prob <= 0 || !sampler.Bernoulli(prob) {
				continue
			}

			delay := sampler.IntRange(p.DelayMin, p.DelayMax)
			excitatory := sampler.Bernoulli(p.ExcitatoryFraction)
			strength := sampler.Uniform(p.StrengthMin, p.StrengthMax)
			if excitatory {
				summary.Excitatory++
			} else {
				strength = -strength
				summary.Inhibitory++
			}

			if _, err := s.Connect(world.NeuronID(pre), world.NeuronID(post), uint64(delay), strength); err != nil {
				return Summary{}, fmt.Errorf("connect %d->%d: %w", pre, post, err)
			}
			summary.ByPair[key]++
			summary.Synapses++
		}
	}

	return summary, nil
}

func addNeuron(s *world.Store, p Params, c world.ColumnCoordinates) error {
	var err error
	switch p.LayerModels[c.Layer] {
	case world.HindmarshRose:
		_, err = s.NewHindmarshRoseNeuron(p.HindmarshRoseInitial, p.HindmarshRose, &c)
	default:
		_, err = s.NewIzhikevichNeuron(p.Izhikevich.RestingState(), p.Izhikevich, &c)
	}
	if err != nil {
		return fmt.Errorf("create neuron in column %d layer %s: %w", c.Column, c.Layer, err)
	}
	return nil
}
