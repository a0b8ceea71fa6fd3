package world

// NeuronSnapshot is a copy of every component on one neuron.
type NeuronSnapshot struct {
	Neuron        Neuron
	Model         Model
	HindmarshRose *HindmarshRoseState
	Izhikevich    *IzhikevichState
	Coordinates   *ColumnCoordinates
}

// SynapseSnapshot is a copy of a synapse and its learning rule.
type SynapseSnapshot struct {
	Synapse Synapse
	Rule    STDPLearningRule
}

// Snapshot is a deep copy of all mutable component state in a store.
// Morphologies are immutable and not included.
type Snapshot struct {
	Neurons  []NeuronSnapshot
	Synapses []SynapseSnapshot
}

// Snapshot copies the current component state in creation order.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Neurons:  make([]NeuronSnapshot, len(s.neurons)),
		Synapses: make([]SynapseSnapshot, len(s.synapses)),
	}

	for i := range s.neurons {
		id := NeuronID(i)
		ns := NeuronSnapshot{Neuron: *s.Neuron(id), Model: s.models[i]}
		if st, _, ok := s.HindmarshRose(id); ok {
			c := *st
			ns.HindmarshRose = &c
		}
		if st, _, ok := s.Izhikevich(id); ok {
			c := *st
			ns.Izhikevich = &c
		}
		if coords, ok := s.Coordinates(id); ok {
			ns.Coordinates = &coords
		}
		snap.Neurons[i] = ns
	}

	for i := range s.synapses {
		syn, rule := s.Synapse(SynapseID(i))
		c := *syn
		c.Pending = syn.Pending.Clone()
		snap.Synapses[i] = SynapseSnapshot{Synapse: c, Rule: *rule}
	}

	return snap
}
