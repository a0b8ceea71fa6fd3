// Package transmission moves spikes along synapses. A presynaptic action
// potential is scheduled on every outgoing synapse's delivery queue and
// arrives at the postsynaptic neuron's PSP after the synapse's delay.
package transmission

import (
	"context"
	"fmt"

	"github.com/nvandessel/spikenet/internal/parallel"
	"github.com/nvandessel/spikenet/internal/world"
)

// Options configures the transmission stage.
type Options struct {
	// Workers bounds the collect-phase goroutines. Zero means one per CPU.
	Workers int

	// MaxAmplitude clamps each delivered amplitude. Zero disables the clamp.
	MaxAmplitude float64
}

// Stage schedules and delivers spikes for every synapse of a frozen store.
type Stage struct {
	store     *world.Store
	synapses  []*world.Synapse
	workers   int
	collector Collector

	delivered int
}

// New creates the stage. The store must be frozen.
func New(s *world.Store, opts Options) (*Stage, error) {
	if !s.Frozen() {
		return nil, fmt.Errorf("transmission: store must be frozen")
	}
	synapses := make([]*world.Synapse, s.NumSynapses())
	for i := range synapses {
		synapses[i], _ = s.Synapse(world.SynapseID(i))
	}
	return &Stage{
		store:     s,
		synapses:  synapses,
		workers:   opts.Workers,
		collector: Collector{MaxAmplitude: opts.MaxAmplitude},
	}, nil
}

// Run executes one tick of transmission. Synapses whose presynaptic neuron
// fired are scheduled for tick+delay; every delivery due at or before tick
// is then removed from its queue and added to the postsynaptic PSP.
func (st *Stage) Run(ctx context.Context, tick world.Tick) error {
	st.collector.Reset(parallel.Chunks(len(st.synapses), st.workers))

	err := parallel.ForEach(ctx, len(st.synapses), st.workers, func(ctx context.Context, chunk, lo, hi int) error {
		for _, syn := range st.synapses[lo:hi] {
			if st.store.Neuron(syn.Pre).ActionPotential {
				syn.Pending.Schedule(tick + world.Tick(syn.Delay))
			}
			for n := syn.Pending.PopDue(tick); n > 0; n-- {
				st.collector.Add(chunk, syn.Post, syn.Strength)
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("transmission at tick %d: %w", tick, err)
	}

	st.delivered = st.collector.Apply(st.store)
	return nil
}

// Delivered returns the number of deliveries applied by the last Run.
func (st *Stage) Delivered() int {
	return st.delivered
}

// Retire clears every action-potential marker. It runs once per tick after
// all consumers of the markers have seen them.
func Retire(s *world.Store) {
	for i := 0; i < s.NumNeurons(); i++ {
		s.Neuron(world.NeuronID(i)).ActionPotential = false
	}
}
