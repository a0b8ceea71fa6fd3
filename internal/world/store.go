package world

import (
	"errors"
	"fmt"

	"github.com/mlange-42/ark/ecs"
)

// ErrFrozen is returned when an entity is created after Freeze.
var ErrFrozen = errors.New("world: store is frozen")

// InvariantError reports a structural invariant violated while building the
// network, such as a synapse that references a nonexistent neuron.
type InvariantError struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("world: %s: %s", e.Op, e.Reason)
}

// Store owns the ark world and the identity tables of a network.
// It is not safe for concurrent structural changes; stages mutate component
// fields through the pointers the store hands out.
type Store struct {
	world ecs.World

	neuronMap *ecs.Map[Neuron]
	coordMap  *ecs.Map[ColumnCoordinates]
	hrMap     *ecs.Map3[Neuron, HindmarshRoseState, HindmarshRoseMorphology]
	izhMap    *ecs.Map3[Neuron, IzhikevichState, IzhikevichMorphology]
	synMap    *ecs.Map2[Synapse, STDPLearningRule]

	neurons  []ecs.Entity
	models   []Model
	synapses []ecs.Entity

	// Resolved by Freeze.
	frozen      bool
	neuronPtrs  []*Neuron
	primaryPtrs []*float64
	synapsePtrs []*Synapse
	rulePtrs    []*STDPLearningRule
}

// NewStore creates an empty store in the setup phase.
func NewStore() *Store {
	s := &Store{world: ecs.NewWorld()}
	s.neuronMap = ecs.NewMap[Neuron](&s.world)
	s.coordMap = ecs.NewMap[ColumnCoordinates](&s.world)
	s.hrMap = ecs.NewMap3[Neuron, HindmarshRoseState, HindmarshRoseMorphology](&s.world)
	s.izhMap = ecs.NewMap3[Neuron, IzhikevichState, IzhikevichMorphology](&s.world)
	s.synMap = ecs.NewMap2[Synapse, STDPLearningRule](&s.world)
	return s
}

// World exposes the underlying ark world so stages can build filters over
// the archetypes they own.
func (s *Store) World() *ecs.World {
	return &s.world
}

// NewHindmarshRoseNeuron creates a Hindmarsh-Rose neuron. coords may be nil.
func (s *Store) NewHindmarshRoseNeuron(state HindmarshRoseState, morph HindmarshRoseMorphology, coords *ColumnCoordinates) (NeuronID, error) {
	if s.frozen {
		return 0, ErrFrozen
	}
	id := NeuronID(len(s.neurons))
	e := s.hrMap.NewEntity(&Neuron{ID: id}, &state, &morph)
	return s.register(e, HindmarshRose, coords), nil
}

// NewIzhikevichNeuron creates an Izhikevich neuron. coords may be nil.
func (s *Store) NewIzhikevichNeuron(state IzhikevichState, morph IzhikevichMorphology, coords *ColumnCoordinates) (NeuronID, error) {
	if s.frozen {
		return 0, ErrFrozen
	}
	id := NeuronID(len(s.neurons))
	e := s.izhMap.NewEntity(&Neuron{ID: id}, &state, &morph)
	return s.register(e, Izhikevich, coords), nil
}

func (s *Store) register(e ecs.Entity, model Model, coords *ColumnCoordinates) NeuronID {
	if coords != nil {
		c := *coords
		s.coordMap.Add(e, &c)
	}
	s.neurons = append(s.neurons, e)
	s.models = append(s.models, model)
	return NeuronID(len(s.neurons) - 1)
}

// Connect creates a synapse from pre to post with a fresh STDP rule.
// Both neurons must exist and delay must be at least one tick.
func (s *Store) Connect(pre, post NeuronID, delay uint64, strength float64) (SynapseID, error) {
	if s.frozen {
		return 0, ErrFrozen
	}
	if !s.validNeuron(pre) {
		return 0, &InvariantError{Op: "connect", Reason: fmt.Sprintf("presynaptic neuron %d does not exist", pre)}
	}
	if !s.validNeuron(post) {
		return 0, &InvariantError{Op: "connect", Reason: fmt.Sprintf("postsynaptic neuron %d does not exist", post)}
	}
	if delay < 1 {
		return 0, &InvariantError{Op: "connect", Reason: fmt.Sprintf("delay must be at least 1 tick, got %d", delay)}
	}

	id := SynapseID(len(s.synapses))
	rule := NewSTDPLearningRule()
	e := s.synMap.NewEntity(&Synapse{
		ID:       id,
		Pre:      pre,
		Post:     post,
		Delay:    delay,
		Strength: strength,
	}, &rule)
	s.synapses = append(s.synapses, e)
	return id, nil
}

func (s *Store) validNeuron(id NeuronID) bool {
	return id >= 0 && int(id) < len(s.neurons)
}

// Freeze ends the setup phase and resolves stable component pointers.
// Calling Freeze more than once is a no-op.
func (s *Store) Freeze() {
	if s.frozen {
		return
	}

	s.neuronPtrs = make([]*Neuron, len(s.neurons))
	s.primaryPtrs = make([]*float64, len(s.neurons))
	for i, e := range s.neurons {
		switch s.models[i] {
		case HindmarshRose:
			n, st, _ := s.hrMap.Get(e)
			s.neuronPtrs[i] = n
			s.primaryPtrs[i] = &st.Y
		case Izhikevich:
			n, st, _ := s.izhMap.Get(e)
			s.neuronPtrs[i] = n
			s.primaryPtrs[i] = &st.V
		}
	}

	s.synapsePtrs = make([]*Synapse, len(s.synapses))
	s.rulePtrs = make([]*STDPLearningRule, len(s.synapses))
	for i, e := range s.synapses {
		s.synapsePtrs[i], s.rulePtrs[i] = s.synMap.Get(e)
	}

	s.frozen = true
}

// Frozen reports whether the setup phase has ended.
func (s *Store) Frozen() bool {
	return s.frozen
}

// NumNeurons returns the number of neurons created.
func (s *Store) NumNeurons() int {
	return len(s.neurons)
}

// NumSynapses returns the number of synapses created.
func (s *Store) NumSynapses() int {
	return len(s.synapses)
}

// Model returns the dynamical-state variant of a neuron.
func (s *Store) Model(id NeuronID) Model {
	return s.models[id]
}

// Neuron returns the common component of a neuron.
func (s *Store) Neuron(id NeuronID) *Neuron {
	if s.frozen {
		return s.neuronPtrs[id]
	}
	return s.neuronMap.Get(s.neurons[id])
}

// Primary returns the model's primary observable: y for Hindmarsh-Rose,
// v for Izhikevich.
func (s *Store) Primary(id NeuronID) float64 {
	if s.frozen {
		return *s.primaryPtrs[id]
	}
	switch s.models[id] {
	case HindmarshRose:
		st, _, _ := s.HindmarshRose(id)
		return st.Y
	default:
		st, _, _ := s.Izhikevich(id)
		return st.V
	}
}

// Coordinates returns the column placement of a neuron, if it has one.
func (s *Store) Coordinates(id NeuronID) (ColumnCoordinates, bool) {
	e := s.neurons[id]
	if !s.coordMap.Has(e) {
		return ColumnCoordinates{}, false
	}
	return *s.coordMap.Get(e), true
}

// HindmarshRose returns the state and morphology of a Hindmarsh-Rose neuron.
func (s *Store) HindmarshRose(id NeuronID) (*HindmarshRoseState, *HindmarshRoseMorphology, bool) {
	if s.models[id] != HindmarshRose {
		return nil, nil, false
	}
	_, st, m := s.hrMap.Get(s.neurons[id])
	return st, m, true
}

// Izhikevich returns the state and morphology of an Izhikevich neuron.
func (s *Store) Izhikevich(id NeuronID) (*IzhikevichState, *IzhikevichMorphology, bool) {
	if s.models[id] != Izhikevich {
		return nil, nil, false
	}
	_, st, m := s.izhMap.Get(s.neurons[id])
	return st, m, true
}

// Synapse returns a synapse and its learning rule.
func (s *Store) Synapse(id SynapseID) (*Synapse, *STDPLearningRule) {
	if s.frozen {
		return s.synapsePtrs[id], s.rulePtrs[id]
	}
	return s.synMap.Get(s.synapses[id])
}
