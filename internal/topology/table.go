// Package topology builds the layered-column network: a population of
// neurons arranged in columns and layers, wired by probabilistic synapses.
package topology

import "github.com/nvandessel/spikenet/internal/world"

// PairKey identifies a (same column, pre layer, post layer) connection class.
type PairKey struct {
	SameColumn bool
	Pre        world.Layer
	Post       world.Layer
}

// Table maps connection classes to connection probabilities. Classes that
// are absent have probability zero.
type Table map[PairKey]float64

// DefaultTable returns the connection probabilities of the cortical column model.
func DefaultTable() Table {
	t := Table{
		// intra-column, intra-layer
		{true, world.Internal, world.Internal}: 0.8,

		// intra-column, cross-layer
		{true, world.Sensory, world.Internal}:  0.8,
		{true, world.Afferent, world.Internal}: 0.8,
		{true, world.Internal, world.Motor}:    0.8,
		{true, world.Internal, world.Efferent}: 0.8,

		// cross-column
		{false, world.Efferent, world.Afferent}: 0.3,
	}
	for _, l := range world.Layers {
		if l != world.Internal {
			t[PairKey{true, l, l}] = 0.4
		}
	}
	return t
}

// Probability returns the connection probability for a pair class.
func (t Table) Probability(sameColumn bool, pre, post world.Layer) float64 {
	return t[PairKey{SameColumn: sameColumn, Pre: pre, Post: post}]
}
