package neuron

import (
	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/world"
)

// Probe integrates a single isolated neuron under a constant injected
// current and exposes every state variable. It backs the single-neuron
// trace command.
type Probe struct {
	model   world.Model
	neuron  world.Neuron
	hr      world.HindmarshRoseState
	hrMorph world.HindmarshRoseMorphology
	izh     world.IzhikevichState
	izMorph world.IzhikevichMorphology

	current  float64
	noiseMax float64
	sampler  *rng.Sampler
	tick     world.Tick
}

// ProbeSample is one tick of a probe trace.
type ProbeSample struct {
	Tick   world.Tick
	Values []float64
	Spike  bool
}

// NewHindmarshRoseProbe probes a Hindmarsh-Rose neuron. The current is
// applied as the constant external input I.
func NewHindmarshRoseProbe(st world.HindmarshRoseState, m world.HindmarshRoseMorphology, current float64) *Probe {
	st.I = current
	return &Probe{model: world.HindmarshRose, hr: st, hrMorph: m, current: current}
}

// NewIzhikevichProbe probes an Izhikevich neuron. The current is added to
// the input every tick together with noise drawn from [0, noiseMax).
func NewIzhikevichProbe(st world.IzhikevichState, m world.IzhikevichMorphology, current, noiseMax float64, seed uint64) *Probe {
	return &Probe{
		model:    world.Izhikevich,
		izh:      st,
		izMorph:  m,
		current:  current,
		noiseMax: noiseMax,
		sampler:  rng.New(seed),
	}
}

// Columns names the values reported by Step.
func (p *Probe) Columns() []string {
	if p.model == world.HindmarshRose {
		return []string{"x", "y", "z", "i"}
	}
	return []string{"v", "u"}
}

// Step advances the neuron one tick and returns its state after the step.
func (p *Probe) Step() ProbeSample {
	p.neuron.ActionPotential = false

	var values []float64
	switch p.model {
	case world.HindmarshRose:
		StepHindmarshRose(&p.neuron, &p.hr, &p.hrMorph)
		values = []float64{p.hr.X, p.hr.Y, p.hr.Z, p.hr.I}
	default:
		noise := 0.0
		if p.noiseMax > 0 {
			noise = p.sampler.Uniform(0, p.noiseMax)
		}
		p.neuron.PSP = p.current
		StepIzhikevich(&p.neuron, &p.izh, &p.izMorph, noise)
		values = []float64{p.izh.V, p.izh.U}
	}

	sample := ProbeSample{Tick: p.tick, Values: values, Spike: p.neuron.ActionPotential}
	p.tick++
	return sample
}
