package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/spikenet/internal/world"
)

// FiredAt reports whether neuron id fired on the given tick.
func FiredAt(result SimulationResult, id world.NeuronID, tick world.Tick) bool {
	if int(tick) >= len(result.Ticks) {
		return false
	}
	for _, f := range result.Ticks[tick].Fired {
		if f == id {
			return true
		}
	}
	return false
}

// FirstSpike returns the first tick on which neuron id fired.
func FirstSpike(result SimulationResult, id world.NeuronID) (world.Tick, bool) {
	for _, tr := range result.Ticks {
		for _, f := range tr.Fired {
			if f == id {
				return tr.Tick, true
			}
		}
	}
	return 0, false
}

// SpikeCount returns how many ticks neuron id fired on.
func SpikeCount(result SimulationResult, id world.NeuronID) int {
	n := 0
	for _, tr := range result.Ticks {
		for _, f := range tr.Fired {
			if f == id {
				n++
			}
		}
	}
	return n
}

// AssertFiresAt asserts that neuron id fired on the given tick.
func AssertFiresAt(t *testing.T, result SimulationResult, id world.NeuronID, tick world.Tick) {
	t.Helper()
	if !FiredAt(result, id, tick) {
		first, ok := FirstSpike(result, id)
		t.Errorf("AssertFiresAt: neuron %d did not fire at tick %d (first spike %d, fired %v)", id, tick, first, ok)
	}
}

// AssertSilentBefore asserts that neuron id did not fire before tick.
func AssertSilentBefore(t *testing.T, result SimulationResult, id world.NeuronID, tick world.Tick) {
	t.Helper()
	if first, ok := FirstSpike(result, id); ok && first < tick {
		t.Errorf("AssertSilentBefore: neuron %d fired at tick %d, before %d", id, first, tick)
	}
}

// AssertSpikeCount asserts that neuron id fired between min and max times.
func AssertSpikeCount(t *testing.T, result SimulationResult, id world.NeuronID, min, max int) {
	t.Helper()
	if n := SpikeCount(result, id); n < min || n > max {
		t.Errorf("AssertSpikeCount: neuron %d fired %d times, want [%d, %d]", id, n, min, max)
	}
}

func strengths(t *testing.T, result SimulationResult, id world.SynapseID) (first, last float64, ok bool) {
	t.Helper()
	if len(result.Ticks) == 0 || int(id) >= len(result.Ticks[0].Strengths) {
		t.Errorf("synapse %d not recorded", id)
		return 0, 0, false
	}
	return result.Ticks[0].Strengths[id], result.Ticks[len(result.Ticks)-1].Strengths[id], true
}

// AssertStrengthIncreased asserts that synapse id ended stronger than it
// was after the first tick.
func AssertStrengthIncreased(t *testing.T, result SimulationResult, id world.SynapseID) {
	t.Helper()
	if first, last, ok := strengths(t, result, id); ok && last <= first {
		t.Errorf("AssertStrengthIncreased: synapse %d went %.6f -> %.6f", id, first, last)
	}
}

// AssertStrengthDecreased asserts that synapse id ended weaker than it was
// after the first tick.
func AssertStrengthDecreased(t *testing.T, result SimulationResult, id world.SynapseID) {
	t.Helper()
	if first, last, ok := strengths(t, result, id); ok && last >= first {
		t.Errorf("AssertStrengthDecreased: synapse %d went %.6f -> %.6f", id, first, last)
	}
}

// AssertStrengthBounded asserts that no synapse left [-bound, bound] on any tick.
func AssertStrengthBounded(t *testing.T, result SimulationResult, bound float64) {
	t.Helper()
	for _, tr := range result.Ticks {
		for i, w := range tr.Strengths {
			if math.Abs(w) > bound {
				t.Fatalf("AssertStrengthBounded: tick %d: synapse %d strength %.6f exceeds %.4f", tr.Tick, i, w, bound)
			}
		}
	}
}

// AssertFinite asserts that every neuron's primary observable is finite at
// the end of the run.
func AssertFinite(t *testing.T, result SimulationResult) {
	t.Helper()
	for i := 0; i < result.Store.NumNeurons(); i++ {
		if v := result.Store.Primary(world.NeuronID(i)); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("AssertFinite: neuron %d value %v", i, v)
		}
	}
}
