package simulation

import "github.com/nvandessel/spikenet/internal/world"

// Resting returns a regular-spiking Izhikevich neuron at rest.
func Resting() NeuronSpec {
	return NeuronSpec{Model: world.Izhikevich, Izhikevich: RegularSpiking.RestingState()}
}

// Seeded returns an Izhikevich neuron above the peak, which fires on tick 0.
func Seeded() NeuronSpec {
	return NeuronSpec{Model: world.Izhikevich, Izhikevich: world.IzhikevichState{V: 35, U: -13}}
}

// Oscillator returns a Hindmarsh-Rose neuron in the quiescent starting state.
func Oscillator() NeuronSpec {
	return NeuronSpec{Model: world.HindmarshRose, HindmarshRose: world.HindmarshRoseState{X: -1.6, Y: -10}}
}

// Drive returns a BeforeTick hook that adds amount to the PSP of each
// neuron in ids on the given ticks.
func Drive(amount float64, ticks []world.Tick, ids ...world.NeuronID) func(world.Tick, *world.Store) {
	due := make(map[world.Tick]bool, len(ticks))
	for _, t := range ticks {
		due[t] = true
	}
	return func(tick world.Tick, s *world.Store) {
		if !due[tick] {
			return
		}
		for _, id := range ids {
			s.Neuron(id).PSP += amount
		}
	}
}
