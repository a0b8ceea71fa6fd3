package simulation

import (
	"context"
	"slices"
	"testing"

	"github.com/nvandessel/spikenet/internal/neuron"
	"github.com/nvandessel/spikenet/internal/plasticity"
	"github.com/nvandessel/spikenet/internal/store"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/world"
)

func chainScenario(name string) Scenario {
	return Scenario{
		Name:    name,
		Neurons: []NeuronSpec{Seeded(), Resting()},
		Synapses: []SynapseSpec{
			{Pre: 0, Post: 1, Delay: 5, Strength: 100},
			{Pre: 1, Post: 0, Delay: 19, Strength: 0.5},
		},
		Ticks: 40,
		Seed:  7,
	}
}

func TestDelayedChain(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(chainScenario("delayed-chain"))

	AssertFiresAt(t, result, 0, 0)
	AssertSpikeCount(t, result, 0, 1, 1)

	// Delivered at tick 5, integrated into the potential on tick 6.
	AssertSilentBefore(t, result, 1, 6)
	AssertFiresAt(t, result, 1, 6)
	AssertSpikeCount(t, result, 1, 1, 1)

	AssertStrengthIncreased(t, result, 0)
	AssertStrengthDecreased(t, result, 1)
}

func TestDelayedChain_PlasticityDisabled(t *testing.T) {
	sc := chainScenario("no-plasticity")
	sc.Plasticity = &plasticity.Config{}

	result := NewRunner(t).Run(sc)

	AssertFiresAt(t, result, 1, 6)
	last := result.Ticks[len(result.Ticks)-1].Strengths
	if last[0] != 100 || last[1] != 0.5 {
		t.Errorf("strengths changed with plasticity disabled: %v", last)
	}
}

func TestHindmarshRoseBursts(t *testing.T) {
	result := NewRunner(t).Run(Scenario{
		Name:       "hr-burst",
		Neurons:    []NeuronSpec{Oscillator()},
		Ticks:      3000,
		BeforeTick: Drive(3, []world.Tick{0}, 0),
	})

	first, ok := FirstSpike(result, 0)
	if !ok {
		t.Fatal("driven oscillator never fired")
	}
	if first < 200 || first > 300 {
		t.Errorf("first spike at tick %d, want around 249", first)
	}
	AssertSpikeCount(t, result, 0, 2, 20)
	AssertFinite(t, result)
}

func generatedScenario(name string, workers int) Scenario {
	p := topology.DefaultParams()
	p.Columns = 2
	cfg := plasticity.DefaultConfig()
	cfg.StrengthBound = 5

	return Scenario{
		Name:        name,
		Topology:    &p,
		Ticks:       300,
		Seed:        42,
		Workers:     workers,
		NoiseMax:    neuron.DefaultNoiseMax,
		Plasticity:  &cfg,
		CheckFinite: true,
	}
}

func TestGeneratedNetwork(t *testing.T) {
	result := NewRunner(t).Run(generatedScenario("generated", 0))

	if got := result.Store.NumNeurons(); got != 200 {
		t.Fatalf("NumNeurons = %d, want 200", got)
	}
	if len(result.Ticks) != 300 {
		t.Fatalf("recorded %d ticks, want 300", len(result.Ticks))
	}
	AssertStrengthBounded(t, result, 5)
	AssertFinite(t, result)

	total := 0
	for _, tr := range result.Ticks {
		total += len(tr.Fired)
	}
	if total == 0 {
		t.Error("noise-driven network never fired")
	}
}

func TestGeneratedNetwork_WorkerCountInvariant(t *testing.T) {
	serial := NewRunner(t).Run(generatedScenario("serial", 1))
	for _, workers := range []int{2, 4} {
		got := NewRunner(t).Run(generatedScenario("parallel", workers))
		for i := range serial.Ticks {
			if !slices.Equal(serial.Ticks[i].Fired, got.Ticks[i].Fired) {
				t.Fatalf("workers=%d: tick %d fired %v, want %v", workers, i, got.Ticks[i].Fired, serial.Ticks[i].Fired)
			}
			if !slices.Equal(serial.Ticks[i].Strengths, got.Ticks[i].Strengths) {
				t.Fatalf("workers=%d: tick %d strengths diverged", workers, i)
			}
		}
	}
}

func TestRecordedRun(t *testing.T) {
	sc := chainScenario("recorded")
	sc.Record = true
	result := NewRunner(t).Run(sc)

	ctx := context.Background()
	db, err := store.Open(ctx, result.DBPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	counts, err := store.SpikeCounts(ctx, db, result.RunID)
	if err != nil {
		t.Fatalf("SpikeCounts: %v", err)
	}
	for id := world.NeuronID(0); id < 2; id++ {
		if got, want := counts[id], SpikeCount(result, id); got != want {
			t.Errorf("neuron %d: recorded %d spikes, harness saw %d", id, got, want)
		}
	}
}
