package simulation

import (
	"github.com/nvandessel/spikenet/internal/plasticity"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/world"
)

// RegularSpiking is the Izhikevich parameter set used by the helper constructors.
var RegularSpiking = world.IzhikevichMorphology{A: 0.02, B: 0.2, C: -65, D: 2}

// Bursting is the Hindmarsh-Rose parameter set used by the helper constructors.
var Bursting = world.HindmarshRoseMorphology{
	A: 1, B: 3, C: 1, D: 5, Beta: 1, R: 0.001, S: 4, XR: -1.6, TS: 0.1, EPSPAmp: 0.1,
}

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Neurons and Synapses build an explicit network. They are ignored when
	// Topology is set.
	Neurons  []NeuronSpec
	Synapses []SynapseSpec

	// Topology, when non-nil, generates a layered-column network instead.
	Topology *topology.Params

	Ticks    uint64
	Seed     uint64
	Workers  int
	NoiseMax float64

	// Plasticity defaults to plasticity.DefaultConfig() when nil.
	Plasticity   *plasticity.Config
	MaxAmplitude float64

	CheckFinite bool

	// Record writes the run to a SQLite database in the runner's directory.
	Record bool

	// BeforeTick, when non-nil, is called before each tick executes. Use it
	// to inject input into neurons (for example by setting PSP).
	BeforeTick func(tick world.Tick, s *world.Store)
}

// NeuronSpec defines one neuron of an explicit network.
type NeuronSpec struct {
	Model         world.Model
	Izhikevich    world.IzhikevichState
	HindmarshRose world.HindmarshRoseState
}

// SynapseSpec defines one synapse of an explicit network.
type SynapseSpec struct {
	Pre      world.NeuronID
	Post     world.NeuronID
	Delay    uint64
	Strength float64
}

// TickResult captures the outcome of a single tick.
type TickResult struct {
	Tick      world.Tick
	Fired     []world.NeuronID
	Strengths []float64 // by SynapseID, after the tick
}

// SimulationResult captures every tick and the final store state.
type SimulationResult struct {
	Ticks []TickResult
	Store *world.Store

	// DBPath is the SQLite database of a recorded run, RunID its run.
	DBPath string
	RunID  int64
}
