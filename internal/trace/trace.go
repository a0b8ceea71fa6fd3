// Package trace writes per-tick network observations to output sinks.
package trace

import (
	"errors"
	"fmt"

	"github.com/nvandessel/spikenet/internal/world"
)

// Sample is the observable state of the network after one tick. Values and
// Spikes have one entry per neuron in creation order; Values holds each
// neuron's primary observable (y for Hindmarsh-Rose, v for Izhikevich).
//
// A Sample is reused from tick to tick; sinks must not retain its slices.
type Sample struct {
	Tick   world.Tick
	Values []float64
	Spikes []bool
}

// NewSample allocates a sample for n neurons.
func NewSample(n int) Sample {
	return Sample{Values: make([]float64, n), Spikes: make([]bool, n)}
}

// Fill records the current state of every neuron in s.
func (smp *Sample) Fill(s *world.Store, tick world.Tick) {
	smp.Tick = tick
	for i := range smp.Values {
		id := world.NeuronID(i)
		smp.Values[i] = s.Primary(id)
		smp.Spikes[i] = s.Neuron(id).ActionPotential
	}
}

// SpikeCount returns the number of neurons that fired in the sample.
func (smp Sample) SpikeCount() int {
	n := 0
	for _, s := range smp.Spikes {
		if s {
			n++
		}
	}
	return n
}

// Sink consumes one Sample per tick.
type Sink interface {
	WriteTick(s Sample) error
	Close() error
}

// Multi fans samples out to several sinks.
type Multi []Sink

// WriteTick writes the sample to every sink and stops at the first error.
func (m Multi) WriteTick(s Sample) error {
	for i, sink := range m {
		if err := sink.WriteTick(s); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink and returns all errors joined.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkWidth(s Sample, neurons int) error {
	if len(s.Values) != neurons || len(s.Spikes) != neurons {
		return fmt.Errorf("sample at tick %d has %d values and %d spikes, want %d", s.Tick, len(s.Values), len(s.Spikes), neurons)
	}
	return nil
}
