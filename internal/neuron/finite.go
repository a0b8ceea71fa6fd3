package neuron

import (
	"fmt"
	"math"

	"github.com/nvandessel/spikenet/internal/world"
)

// DivergenceError reports a neuron whose state became non-finite.
type DivergenceError struct {
	Neuron world.NeuronID `json:"neuron"`
	Tick   world.Tick     `json:"tick"`
	Field  string         `json:"field"`
	Value  float64        `json:"value"`
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("neuron %d diverged at tick %d: %s = %v", e.Neuron, e.Tick, e.Field, e.Value)
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CheckFinite scans all neurons in creation order and returns a
// *DivergenceError for the first non-finite state variable, or nil.
// Integrators never trap divergence themselves; callers opt into this check.
func CheckFinite(s *world.Store, tick world.Tick) error {
	for i := 0; i < s.NumNeurons(); i++ {
		id := world.NeuronID(i)
		if psp := s.Neuron(id).PSP; !IsFinite(psp) {
			return &DivergenceError{Neuron: id, Tick: tick, Field: "psp", Value: psp}
		}

		var fields []string
		var values []float64
		switch s.Model(id) {
		case world.HindmarshRose:
			st, _, _ := s.HindmarshRose(id)
			fields = []string{"x", "y", "z", "i"}
			values = []float64{st.X, st.Y, st.Z, st.I}
		case world.Izhikevich:
			st, _, _ := s.Izhikevich(id)
			fields = []string{"v", "u"}
			values = []float64{st.V, st.U}
		}
		for j, v := range values {
			if !IsFinite(v) {
				return &DivergenceError{Neuron: id, Tick: tick, Field: fields[j], Value: v}
			}
		}
	}
	return nil
}
