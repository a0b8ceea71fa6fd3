package neuron

import (
	"context"

	"github.com/mlange-42/ark/ecs"

	"github.com/nvandessel/spikenet/internal/parallel"
	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/world"
)

// IzhikevichPeak is the membrane potential at which an Izhikevich neuron
// fires and resets.
const IzhikevichPeak = 30.0

// DefaultNoiseMax is the upper bound of the uniform thalamic noise current.
const DefaultNoiseMax = 5.0

// StepIzhikevich advances an Izhikevich neuron by one tick with input
// I = PSP + noise. PSP is reset to zero after being read.
//
// A neuron that starts the tick at or above the peak (a seeded state) is
// reset and fires without integrating. Spiking mirrors ActionPotential:
// the model has no separate above-threshold state.
func StepIzhikevich(n *world.Neuron, st *world.IzhikevichState, m *world.IzhikevichMorphology, noise float64) {
	i := n.PSP + noise
	n.PSP = 0

	if st.V >= IzhikevichPeak {
		reset(n, st, m)
		return
	}

	st.V += halfStep * (0.04*st.V*st.V + 5*st.V + 140 - st.U + i)
	st.V += halfStep * (0.04*st.V*st.V + 5*st.V + 140 - st.U + i)
	st.U += m.A * (m.B*st.V - st.U)

	if st.V >= IzhikevichPeak {
		reset(n, st, m)
		return
	}
	n.ActionPotential = false
	n.Spiking = false
}

func reset(n *world.Neuron, st *world.IzhikevichState, m *world.IzhikevichMorphology) {
	st.V = m.C
	st.U += m.D
	n.ActionPotential = true
	n.Spiking = true
}

type izhItem struct {
	neuron *world.Neuron
	state  *world.IzhikevichState
	morph  *world.IzhikevichMorphology
}

// IzhikevichIntegrator is the stage that steps every Izhikevich neuron.
// Noise is drawn serially in entity order before the parallel pass so a
// seeded run is reproducible for any worker count.
type IzhikevichIntegrator struct {
	workers  int
	noiseMax float64
	sampler  *rng.Sampler
	batch    []izhItem
	noise    []float64
}

// NewIzhikevichIntegrator creates the stage for the neurons in s. A
// noiseMax of zero disables the noise current. The store must be frozen:
// the neuron set is resolved once here, so Run never queries the world.
func NewIzhikevichIntegrator(s *world.Store, workers int, noiseMax float64, sampler *rng.Sampler) *IzhikevichIntegrator {
	g := &IzhikevichIntegrator{
		workers:  workers,
		noiseMax: noiseMax,
		sampler:  sampler,
	}
	filter := ecs.NewFilter3[world.Neuron, world.IzhikevichState, world.IzhikevichMorphology](s.World())
	query := filter.Query()
	for query.Next() {
		n, st, m := query.Get()
		g.batch = append(g.batch, izhItem{neuron: n, state: st, morph: m})
	}
	g.noise = make([]float64, len(g.batch))
	return g
}

// Run integrates every Izhikevich neuron for the given tick.
func (g *IzhikevichIntegrator) Run(ctx context.Context, _ world.Tick) error {
	if g.noiseMax > 0 {
		g.sampler.Fill(g.noise, 0, g.noiseMax)
	}

	return parallel.ForEach(ctx, len(g.batch), g.workers, func(_ context.Context, _, lo, hi int) error {
		for i := lo; i < hi; i++ {
			it := g.batch[i]
			StepIzhikevich(it.neuron, it.state, it.morph, g.noise[i])
		}
		return nil
	})
}
