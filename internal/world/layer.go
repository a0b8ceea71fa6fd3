package world

import (
	"fmt"
	"strings"
)

// Layer is the functional layer of a neuron within its column.
type Layer int

const (
	Sensory Layer = iota
	Motor
	Afferent
	Efferent
	Internal
)

// Layers lists every layer in topology-generation order.
var Layers = []Layer{Sensory, Motor, Afferent, Efferent, Internal}

var layerNames = map[Layer]string{
	Sensory:  "sensory",
	Motor:    "motor",
	Afferent: "afferent",
	Efferent: "efferent",
	Internal: "internal",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// ParseLayer maps a layer name to a Layer (case-insensitive).
func ParseLayer(s string) (Layer, error) {
	for l, name := range layerNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q (valid: sensory, motor, afferent, efferent, internal)", s)
}

// Model identifies a neuron's dynamical-state variant.
type Model int

const (
	Izhikevich Model = iota
	HindmarshRose
)

func (m Model) String() string {
	switch m {
	case Izhikevich:
		return "izhikevich"
	case HindmarshRose:
		return "hindmarsh_rose"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// ParseModel maps a model name to a Model. Accepts "izhikevich" and
// "hindmarsh_rose" (or "hindmarsh-rose").
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "izhikevich":
		return Izhikevich, nil
	case "hindmarsh_rose":
		return HindmarshRose, nil
	default:
		return 0, fmt.Errorf("unknown model %q (valid: izhikevich, hindmarsh_rose)", s)
	}
}
