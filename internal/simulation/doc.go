// Package simulation provides a scenario test harness for validating the
// emergent dynamics of the tick pipeline.
//
// The harness exercises the real Store, integrators, transmission,
// plasticity and Scheduler, and optionally the SQLite Recorder: no mocks.
// Scenarios are Go values that either list neurons and synapses explicitly
// or generate a layered-column network, then run a tick budget while
// capturing spikes and synaptic strengths for property-based assertions.
//
// Each runner gets an isolated output directory via t.TempDir() and a
// sandboxed HOME to prevent touching user data.
//
// Usage:
//
//	func TestDelayedChain(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:     "chain",
//	        Neurons:  []simulation.NeuronSpec{simulation.Seeded(), simulation.Resting()},
//	        Synapses: []simulation.SynapseSpec{{Pre: 0, Post: 1, Delay: 5, Strength: 100}},
//	        Ticks:    20,
//	    })
//	    simulation.AssertFiresAt(t, result, 1, 6)
//	}
package simulation
