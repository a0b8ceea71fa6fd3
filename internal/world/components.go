// Package world holds neuron and synapse state in an entity/component store.
//
// Neurons and synapses are ark entities. Each neuron carries the common
// Neuron component plus exactly one model archetype (Hindmarsh-Rose or
// Izhikevich state with its morphology); synapses carry a Synapse and an
// STDPLearningRule. The store assigns dense NeuronID and SynapseID values in
// creation order, which is also the output order for traces.
//
// The store has two phases. During setup neurons and synapses are created.
// Freeze ends setup: after it no entity or component is added or removed, so
// component pointers handed out by the store stay valid for the rest of the run.
package world

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tick is a discrete simulation step, nominally one millisecond of model time.
type Tick uint64

// NeuronID identifies a neuron by creation order.
type NeuronID int

// SynapseID identifies a synapse by creation order.
type SynapseID int

// NeverSpiked is the STDP counter value for a side that has not spiked yet.
const NeverSpiked = math.MaxUint64

// Neuron is the component shared by every neuron regardless of model.
type Neuron struct {
	ID NeuronID

	// PSP accumulates synaptic input delivered during transmission. The
	// neuron's integrator reads it once per tick and resets it to zero.
	PSP float64

	// Spiking is true while the neuron is above threshold.
	Spiking bool

	// ActionPotential marks the tick on which the neuron crossed into spiking.
	ActionPotential bool
}

// HindmarshRoseState is the continuous state of a Hindmarsh-Rose neuron.
// I is the input accumulator driven by PSP, not a free ODE variable.
type HindmarshRoseState struct {
	X, Y, Z, I float64
}

// HindmarshRoseMorphology is the immutable parameter set of a Hindmarsh-Rose neuron.
type HindmarshRoseMorphology struct {
	A       float64 `json:"a" yaml:"a"`
	B       float64 `json:"b" yaml:"b"`
	C       float64 `json:"c" yaml:"c"`
	D       float64 `json:"d" yaml:"d"`
	Beta    float64 `json:"beta" yaml:"beta"`
	R       float64 `json:"r" yaml:"r"`
	S       float64 `json:"s" yaml:"s"`
	XR      float64 `json:"x_r" yaml:"x_r"`
	TS      float64 `json:"t_s" yaml:"t_s"`
	EPSPAmp float64 `json:"epsp_amp" yaml:"epsp_amp"`
}

// Validate reports non-finite parameters and a zero time scale.
func (m HindmarshRoseMorphology) Validate() error {
	params := map[string]float64{
		"a": m.A, "b": m.B, "c": m.C, "d": m.D, "beta": m.Beta,
		"r": m.R, "s": m.S, "x_r": m.XR, "t_s": m.TS, "epsp_amp": m.EPSPAmp,
	}
	if err := checkFinite("hindmarsh_rose", params); err != nil {
		return err
	}
	if m.TS == 0 {
		return fmt.Errorf("hindmarsh_rose: t_s must be non-zero")
	}
	return nil
}

// IzhikevichState holds membrane potential V and recovery variable U.
type IzhikevichState struct {
	V, U float64
}

// IzhikevichMorphology is the immutable parameter set of an Izhikevich neuron.
type IzhikevichMorphology struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
	D float64 `json:"d" yaml:"d"`
}

// Validate reports non-finite parameters.
func (m IzhikevichMorphology) Validate() error {
	return checkFinite("izhikevich", map[string]float64{"a": m.A, "b": m.B, "c": m.C, "d": m.D})
}

// RestingState returns the conventional starting state v=c, u=b*c.
func (m IzhikevichMorphology) RestingState() IzhikevichState {
	return IzhikevichState{V: m.C, U: m.B * m.C}
}

func checkFinite(model string, params map[string]float64) error {
	var bad []string
	for name, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("%s: non-finite parameters: %s", model, strings.Join(bad, ", "))
}

// ColumnCoordinates places a neuron in the layered-column topology.
type ColumnCoordinates struct {
	Column int
	Layer  Layer
}

// Synapse connects a presynaptic neuron to a postsynaptic neuron.
// The sign of Strength encodes excitatory (positive) or inhibitory (negative).
type Synapse struct {
	ID       SynapseID
	Pre      NeuronID
	Post     NeuronID
	Delay    uint64
	Strength float64

	// Pending holds the ticks at which scheduled deliveries are due.
	Pending DeliveryQueue
}

// STDPLearningRule tracks the ticks elapsed since each side of a synapse last spiked.
type STDPLearningRule struct {
	PreDt  uint64
	PostDt uint64
}

// NewSTDPLearningRule returns a rule whose counters have never seen a spike.
func NewSTDPLearningRule() STDPLearningRule {
	return STDPLearningRule{PreDt: NeverSpiked, PostDt: NeverSpiked}
}
