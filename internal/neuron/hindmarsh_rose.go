// Package neuron integrates the intrinsic dynamics of Hindmarsh-Rose and
// Izhikevich neurons and detects threshold crossings.
//
// The step functions are pure per-neuron updates. The integrator stages run
// them over every neuron of their archetype in parallel; neuron types never
// interact, and each stage only writes its own entities.
package neuron

import (
	"context"

	"github.com/mlange-42/ark/ecs"

	"github.com/nvandessel/spikenet/internal/parallel"
	"github.com/nvandessel/spikenet/internal/world"
)

const (
	// HindmarshRoseThreshold is the y value above which a Hindmarsh-Rose
	// neuron is considered spiking.
	HindmarshRoseThreshold = -3.5

	// halfStep is the fraction of a tick covered by each Euler half-step.
	halfStep = 0.5

	// msPerSecond converts the per-second derivatives to one-millisecond ticks.
	msPerSecond = 1000.0
)

// StepHindmarshRose advances a Hindmarsh-Rose neuron by one tick.
//
// The derivative is evaluated once at the pre-step state and applied as two
// half-steps. The PSP read this tick is an impulse into I and is not scaled
// by the time constants. PSP is reset to zero after being read.
func StepHindmarshRose(n *world.Neuron, st *world.HindmarshRoseState, m *world.HindmarshRoseMorphology) {
	psp := n.PSP
	n.PSP = 0

	x := st.X
	dx := (st.Y + (-m.A*x*x*x + m.B*x*x) - st.Z + st.I) / m.TS
	dy := ((m.C - m.D*x*x) - m.Beta*st.Y) / m.TS
	dz := m.R * (m.S*(x-m.XR) - st.Z) / m.TS
	di := psp

	for range 2 {
		st.X += halfStep * dx / msPerSecond
		st.Y += halfStep * dy / msPerSecond
		st.Z += halfStep * dz / msPerSecond
		st.I += halfStep * di
	}

	if st.Y > HindmarshRoseThreshold {
		if !n.Spiking {
			n.ActionPotential = true
		}
		n.Spiking = true
	} else if n.Spiking {
		n.Spiking = false
	}
}

type hrItem struct {
	neuron *world.Neuron
	state  *world.HindmarshRoseState
	morph  *world.HindmarshRoseMorphology
}

// HindmarshRoseIntegrator is the stage that steps every Hindmarsh-Rose neuron.
type HindmarshRoseIntegrator struct {
	workers int
	batch   []hrItem
}

// NewHindmarshRoseIntegrator creates the stage for the neurons in s. The
// store must be frozen: the neuron set is resolved once here, so Run never
// queries the world and may run concurrently with other stages.
func NewHindmarshRoseIntegrator(s *world.Store, workers int) *HindmarshRoseIntegrator {
	g := &HindmarshRoseIntegrator{workers: workers}
	filter := ecs.NewFilter3[world.Neuron, world.HindmarshRoseState, world.HindmarshRoseMorphology](s.World())
	query := filter.Query()
	for query.Next() {
		n, st, m := query.Get()
		g.batch = append(g.batch, hrItem{neuron: n, state: st, morph: m})
	}
	return g
}

// Run integrates every Hindmarsh-Rose neuron for the given tick.
func (g *HindmarshRoseIntegrator) Run(ctx context.Context, _ world.Tick) error {
	return parallel.ForEach(ctx, len(g.batch), g.workers, func(_ context.Context, _, lo, hi int) error {
		for _, it := range g.batch[lo:hi] {
			StepHindmarshRose(it.neuron, it.state, it.morph)
		}
		return nil
	})
}
