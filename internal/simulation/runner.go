package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/spikenet/internal/plasticity"
	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/scheduler"
	"github.com/nvandessel/spikenet/internal/store"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/trace"
	"github.com/nvandessel/spikenet/internal/transmission"
	"github.com/nvandessel/spikenet/internal/world"
)

// Runner orchestrates simulation experiments against the real tick pipeline.
type Runner struct {
	t   *testing.T
	dir string
}

// NewRunner creates a simulation runner with an isolated output directory
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	return &Runner{t: t, dir: tmpDir}
}

// Run builds the scenario's network, runs its tick budget and returns the
// collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	// Phase 1: Build the network.
	s := world.NewStore()
	if scenario.Topology != nil {
		if _, err := topology.Generate(s, *scenario.Topology, rng.New(scenario.Seed)); err != nil {
			r.t.Fatalf("%s: Generate: %v", scenario.Name, err)
		}
	} else {
		r.seedNetwork(s, scenario)
	}
	s.Freeze()

	// Phase 2: Wire the sinks.
	result := SimulationResult{Store: s}
	capture := &captureSink{store: s, result: &result}
	sinks := trace.Multi{capture}
	var recorder *store.Recorder
	if scenario.Record {
		result.DBPath = filepath.Join(r.dir, scenario.Name+".db")
		var err error
		recorder, err = store.NewRecorder(ctx, result.DBPath, s, store.RunInfo{Seed: scenario.Seed})
		if err != nil {
			r.t.Fatalf("%s: NewRecorder: %v", scenario.Name, err)
		}
		result.RunID = recorder.RunID()
		sinks = append(sinks, recorder)
	}

	// Phase 3: Configure the scheduler.
	cfg := plasticity.DefaultConfig()
	if scenario.Plasticity != nil {
		cfg = *scenario.Plasticity
	}
	sc, err := scheduler.New(s, scheduler.Options{
		Workers:      scenario.Workers,
		NoiseMax:     scenario.NoiseMax,
		Seed:         scenario.Seed,
		Plasticity:   cfg,
		Transmission: transmission.Options{MaxAmplitude: scenario.MaxAmplitude},
		Sink:         sinks,
		CheckFinite:  scenario.CheckFinite,
	})
	if err != nil {
		r.t.Fatalf("%s: scheduler.New: %v", scenario.Name, err)
	}

	// Phase 4: Run ticks.
	for i := uint64(0); i < scenario.Ticks; i++ {
		if scenario.BeforeTick != nil {
			scenario.BeforeTick(sc.Now(), s)
		}
		if err := sc.Step(ctx); err != nil {
			r.t.Fatalf("%s: tick %d: %v", scenario.Name, sc.Now(), err)
		}
	}

	if err := sinks.Close(); err != nil {
		r.t.Fatalf("%s: closing sinks: %v", scenario.Name, err)
	}
	return result
}

// seedNetwork creates the scenario's explicit neurons and synapses.
func (r *Runner) seedNetwork(s *world.Store, scenario Scenario) {
	r.t.Helper()

	for i, ns := range scenario.Neurons {
		var err error
		switch ns.Model {
		case world.HindmarshRose:
			_, err = s.NewHindmarshRoseNeuron(ns.HindmarshRose, Bursting, nil)
		default:
			_, err = s.NewIzhikevichNeuron(ns.Izhikevich, RegularSpiking, nil)
		}
		if err != nil {
			r.t.Fatalf("%s: neuron %d: %v", scenario.Name, i, err)
		}
	}

	for _, ss := range scenario.Synapses {
		if _, err := s.Connect(ss.Pre, ss.Post, ss.Delay, ss.Strength); err != nil {
			r.t.Fatalf("%s: Connect(%d->%d): %v", scenario.Name, ss.Pre, ss.Post, err)
		}
	}
}

// captureSink records fired neurons and synaptic strengths after every tick.
type captureSink struct {
	store  *world.Store
	result *SimulationResult
}

func (c *captureSink) WriteTick(smp trace.Sample) error {
	tr := TickResult{Tick: smp.Tick, Strengths: make([]float64, c.store.NumSynapses())}
	for i, fired := range smp.Spikes {
		if fired {
			tr.Fired = append(tr.Fired, world.NeuronID(i))
		}
	}
	for i := range tr.Strengths {
		syn, _ := c.store.Synapse(world.SynapseID(i))
		tr.Strengths[i] = syn.Strength
	}
	c.result.Ticks = append(c.result.Ticks, tr)
	return nil
}

func (c *captureSink) Close() error { return nil }
