package transmission

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/spikenet/internal/world"
)

var regularSpiking = world.IzhikevichMorphology{A: 0.02, B: 0.2, C: -65, D: 2}

// newStore creates n unconnected Izhikevich neurons and lets wire add synapses.
func newStore(t *testing.T, n int, wire func(s *world.Store)) *world.Store {
	t.Helper()
	s := world.NewStore()
	for i := 0; i < n; i++ {
		if _, err := s.NewIzhikevichNeuron(regularSpiking.RestingState(), regularSpiking, nil); err != nil {
			t.Fatalf("NewIzhikevichNeuron: %v", err)
		}
	}
	wire(s)
	s.Freeze()
	return s
}

func TestStage_DeliversAfterDelay(t *testing.T) {
	s := newStore(t, 2, func(s *world.Store) {
		if _, err := s.Connect(0, 1, 5, 2.5); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	})
	stage, err := New(s, Options{Workers: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	const fired = world.Tick(10)
	for tick := world.Tick(0); tick <= fired+6; tick++ {
		if tick == fired {
			s.Neuron(0).ActionPotential = true
		}
		if err := stage.Run(ctx, tick); err != nil {
			t.Fatalf("Run(%d): %v", tick, err)
		}
		Retire(s)

		psp := s.Neuron(1).PSP
		switch {
		case tick == fired+5:
			if psp != 2.5 {
				t.Fatalf("tick %d: PSP = %f, want 2.5", tick, psp)
			}
		default:
			if psp != 0 {
				t.Fatalf("tick %d: PSP = %f, want 0", tick, psp)
			}
		}
		s.Neuron(1).PSP = 0
	}
}

func TestStage_PopsEveryDueDelivery(t *testing.T) {
	s := newStore(t, 2, func(s *world.Store) {
		s.Connect(0, 1, 1, 1.5)
	})
	syn, _ := s.Synapse(0)
	syn.Pending.Schedule(3)
	syn.Pending.Schedule(4)
	syn.Pending.Schedule(9)

	stage, _ := New(s, Options{})
	if err := stage.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.Neuron(1).PSP; got != 3 {
		t.Errorf("PSP = %f, want 3 (two overdue deliveries)", got)
	}
	if stage.Delivered() != 2 {
		t.Errorf("Delivered = %d, want 2", stage.Delivered())
	}
	if syn.Pending.Len() != 1 {
		t.Errorf("pending = %d, want 1", syn.Pending.Len())
	}
}

func TestStage_MaxAmplitude(t *testing.T) {
	s := newStore(t, 3, func(s *world.Store) {
		s.Connect(0, 2, 1, 10)
		s.Connect(1, 2, 1, -10)
		s.Connect(0, 1, 1, 0.5)
	})
	for i := 0; i < 3; i++ {
		syn, _ := s.Synapse(world.SynapseID(i))
		syn.Pending.Schedule(1)
	}

	stage, _ := New(s, Options{MaxAmplitude: 3})
	stage.Run(context.Background(), 1)

	if got := s.Neuron(2).PSP; got != 0 {
		t.Errorf("neuron 2 PSP = %f, want +3-3 = 0", got)
	}
	if got := s.Neuron(1).PSP; got != 0.5 {
		t.Errorf("neuron 1 PSP = %f, want unclamped 0.5", got)
	}
	if syn, _ := s.Synapse(0); syn.Strength != 10 {
		t.Errorf("strength modified to %f", syn.Strength)
	}
}

func TestCollector_PermutationInvariant(t *testing.T) {
	amounts := []float64{1e16, 1, -1e16, 0.1, 0.2, 0.3, -2.5, 3.14159, 1e-9, 7}

	s := newStore(t, 1, func(*world.Store) {})
	apply := func(order []float64) float64 {
		s.Neuron(0).PSP = 0
		var c Collector
		c.Reset(3)
		for i, a := range order {
			c.Add(i%3, 0, a)
		}
		c.Apply(s)
		return s.Neuron(0).PSP
	}

	want := apply(amounts)
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		perm := append([]float64(nil), amounts...)
		r.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		if got := apply(perm); math.Float64bits(got) != math.Float64bits(want) {
			t.Fatalf("permutation %v: sum %v, want %v", perm, got, want)
		}
	}
}

func TestStage_WorkerCountInvariant(t *testing.T) {
	const fanIn = 600
	run := func(workers int) float64 {
		s := newStore(t, fanIn+1, func(s *world.Store) {
			for i := 1; i <= fanIn; i++ {
				strength := math.Sin(float64(i)) * math.Pow(10, float64(i%7))
				s.Connect(world.NeuronID(i), 0, 1, strength)
			}
		})
		for i := 1; i <= fanIn; i++ {
			s.Neuron(world.NeuronID(i)).ActionPotential = true
		}

		stage, err := New(s, Options{Workers: workers})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ctx := context.Background()
		stage.Run(ctx, 0)
		Retire(s)
		stage.Run(ctx, 1)
		return s.Neuron(0).PSP
	}

	serial := run(1)
	for _, workers := range []int{2, 4, 8} {
		if got := run(workers); math.Float64bits(got) != math.Float64bits(serial) {
			t.Errorf("workers=%d: PSP %v, want %v", workers, got, serial)
		}
	}
}

func TestRetire(t *testing.T) {
	s := newStore(t, 3, func(*world.Store) {})
	for i := 0; i < 3; i++ {
		n := s.Neuron(world.NeuronID(i))
		n.ActionPotential = true
		n.Spiking = true
	}
	Retire(s)
	for i := 0; i < 3; i++ {
		n := s.Neuron(world.NeuronID(i))
		if n.ActionPotential {
			t.Errorf("neuron %d marker not retired", i)
		}
		if !n.Spiking {
			t.Errorf("neuron %d Spiking cleared by Retire", i)
		}
	}
}

func TestNew_RequiresFrozenStore(t *testing.T) {
	if _, err := New(world.NewStore(), Options{}); err == nil {
		t.Error("New on unfrozen store succeeded")
	}
}
