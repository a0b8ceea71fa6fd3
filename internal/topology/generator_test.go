package topology

import (
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/world"
)

// smallParams returns a single small column useful for exhaustive checks.
func smallParams() Params {
	p := DefaultParams()
	p.Columns = 2
	for _, l := range world.Layers {
		p.LayerSizes[l] = 2
	}
	return p
}

func TestGenerate_DefaultShape(t *testing.T) {
	p := DefaultParams()
	p.Columns = 2

	s := world.NewStore()
	sum, err := Generate(s, p, rng.New(7))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if sum.Neurons != 200 || s.NumNeurons() != 200 {
		t.Fatalf("neurons = %d (store %d), want 200", sum.Neurons, s.NumNeurons())
	}
	if sum.Synapses != s.NumSynapses() {
		t.Errorf("summary synapses %d != store %d", sum.Synapses, s.NumSynapses())
	}
	if sum.Excitatory+sum.Inhibitory != sum.Synapses {
		t.Errorf("excitatory %d + inhibitory %d != %d", sum.Excitatory, sum.Inhibitory, sum.Synapses)
	}

	// Creation order is column by column, layers in declaration order.
	c, ok := s.Coordinates(0)
	if !ok || c.Column != 0 || c.Layer != world.Sensory {
		t.Errorf("neuron 0 coordinates = %+v, %v", c, ok)
	}
	c, _ = s.Coordinates(100)
	if c.Column != 1 || c.Layer != world.Sensory {
		t.Errorf("neuron 100 coordinates = %+v, want column 1 sensory", c)
	}

	for i := 0; i < s.NumSynapses(); i++ {
		syn, rule := s.Synapse(world.SynapseID(i))
		if syn.Pre == syn.Post {
			t.Fatalf("synapse %d is a self connection", i)
		}
		if syn.Delay < 1 || syn.Delay >= 20 {
			t.Fatalf("synapse %d delay = %d, want [1, 20)", i, syn.Delay)
		}
		mag := syn.Strength
		if mag < 0 {
			mag = -mag
		}
		if mag < 0.5 || mag >= 4.0 {
			t.Fatalf("synapse %d |strength| = %f, want [0.5, 4.0)", i, mag)
		}
		if rule.PreDt != world.NeverSpiked || rule.PostDt != world.NeverSpiked {
			t.Fatalf("synapse %d rule = %+v, want sentinels", i, *rule)
		}
	}

	// Roughly 80% excitatory.
	frac := float64(sum.Excitatory) / float64(sum.Synapses)
	if frac < 0.75 || frac > 0.85 {
		t.Errorf("excitatory fraction = %f, want about 0.8", frac)
	}
}

func TestGenerate_ZeroProbabilityNeverConnects(t *testing.T) {
	table := DefaultTable()
	trials := 0
	for seed := uint64(0); trials < 10000; seed++ {
		p := smallParams()
		s := world.NewStore()
		sum, err := Generate(s, p, rng.New(seed))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for key, n := range sum.ByPair {
			if table[key] == 0 && n > 0 {
				t.Fatalf("seed %d: %d synapses in zero-probability class %+v", seed, n, key)
			}
		}
		// Count the zero-probability pair trials this run offered.
		for pre := 0; pre < s.NumNeurons(); pre++ {
			for post := 0; post < s.NumNeurons(); post++ {
				if pre == post {
					continue
				}
				a, _ := s.Coordinates(world.NeuronID(pre))
				b, _ := s.Coordinates(world.NeuronID(post))
				if table.Probability(a.Column == b.Column, a.Layer, b.Layer) == 0 {
					trials++
				}
			}
		}
	}
}

func TestGenerate_CertainProbabilityConnectsEveryPair(t *testing.T) {
	tests := []struct {
		name      string
		allowSelf bool
	}{
		{"without self connections", false},
		{"with self connections", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams()
			p.AllowSelf = tt.allowSelf
			for k, v := range p.Table {
				if v > 0 {
					p.Table[k] = 1.0
				}
			}

			s := world.NewStore()
			sum, err := Generate(s, p, rng.New(3))
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			want := 0
			selfPairs := 0
			for pre := 0; pre < s.NumNeurons(); pre++ {
				for post := 0; post < s.NumNeurons(); post++ {
					if pre == post && !tt.allowSelf {
						continue
					}
					a, _ := s.Coordinates(world.NeuronID(pre))
					b, _ := s.Coordinates(world.NeuronID(post))
					if p.Table.Probability(a.Column == b.Column, a.Layer, b.Layer) == 1 {
						want++
					}
				}
			}
			for i := 0; i < s.NumSynapses(); i++ {
				syn, _ := s.Synapse(world.SynapseID(i))
				if syn.Pre == syn.Post {
					selfPairs++
				}
			}

			if sum.Synapses != want {
				t.Errorf("synapses = %d, want %d", sum.Synapses, want)
			}
			if !tt.allowSelf && selfPairs != 0 {
				t.Errorf("self pairs = %d, want 0", selfPairs)
			}
			if tt.allowSelf && selfPairs == 0 {
				t.Error("self connections allowed but none created")
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() *world.Store {
		s := world.NewStore()
		if _, err := Generate(s, smallParams(), rng.New(11)); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return s
	}
	a, b := build(), build()
	if a.NumSynapses() != b.NumSynapses() {
		t.Fatalf("synapse counts differ: %d vs %d", a.NumSynapses(), b.NumSynapses())
	}
	for i := 0; i < a.NumSynapses(); i++ {
		sa, _ := a.Synapse(world.SynapseID(i))
		sb, _ := b.Synapse(world.SynapseID(i))
		if sa.Pre != sb.Pre || sa.Post != sb.Post || sa.Delay != sb.Delay || sa.Strength != sb.Strength {
			t.Fatalf("synapse %d differs: %+v vs %+v", i, sa, sb)
		}
	}
}

func TestGenerate_LayerModels(t *testing.T) {
	p := smallParams()
	p.LayerModels[world.Internal] = world.HindmarshRose

	s := world.NewStore()
	if _, err := Generate(s, p, rng.New(1)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < s.NumNeurons(); i++ {
		id := world.NeuronID(i)
		c, _ := s.Coordinates(id)
		want := world.Izhikevich
		if c.Layer == world.Internal {
			want = world.HindmarshRose
		}
		if got := s.Model(id); got != want {
			t.Errorf("neuron %d in %s: model %s, want %s", i, c.Layer, got, want)
		}
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"zero columns", func(p *Params) { p.Columns = 0 }, "columns"},
		{"negative layer", func(p *Params) { p.LayerSizes[world.Motor] = -1 }, "layer_sizes.motor"},
		{"zero delay", func(p *Params) { p.DelayMin = 0 }, "delay_min"},
		{"empty delay range", func(p *Params) { p.DelayMax = p.DelayMin }, "delay_max"},
		{"inverted strength", func(p *Params) { p.StrengthMin, p.StrengthMax = 4, 1 }, "strength"},
		{"bad fraction", func(p *Params) { p.ExcitatoryFraction = 1.5 }, "excitatory_fraction"},
		{"bad probability", func(p *Params) { p.Table = Table{{false, world.Sensory, world.Motor}: 1.2} }, "table[false sensory->motor]"},
		{"NaN fraction", func(p *Params) { p.ExcitatoryFraction = math.NaN() }, "excitatory_fraction"},
		{"NaN strength", func(p *Params) { p.StrengthMin = math.NaN() }, "strength"},
		{"infinite strength", func(p *Params) { p.StrengthMax = math.Inf(1) }, "strength"},
		{"NaN probability", func(p *Params) { p.Table = Table{{true, world.Motor, world.Motor}: math.NaN()} }, "table[true motor->motor]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			s := world.NewStore()
			_, err := Generate(s, p, rng.New(1))
			var pe *ParamError
			if !errors.As(err, &pe) {
				t.Fatalf("Generate error = %v, want *ParamError", err)
			}
			if pe.Field != tt.field {
				t.Errorf("field = %q, want %q", pe.Field, tt.field)
			}
			if s.NumNeurons() != 0 {
				t.Errorf("neurons created before validation failed: %d", s.NumNeurons())
			}
		})
	}

	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params invalid: %v", err)
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		same      bool
		pre, post world.Layer
		want      float64
	}{
		{true, world.Internal, world.Internal, 0.8},
		{true, world.Sensory, world.Internal, 0.8},
		{true, world.Internal, world.Efferent, 0.8},
		{true, world.Motor, world.Motor, 0.4},
		{false, world.Efferent, world.Afferent, 0.3},
		{false, world.Internal, world.Internal, 0},
		{true, world.Internal, world.Sensory, 0},
	}
	for _, tt := range tests {
		if got := table.Probability(tt.same, tt.pre, tt.post); got != tt.want {
			t.Errorf("Probability(%v, %s, %s) = %f, want %f", tt.same, tt.pre, tt.post, got, tt.want)
		}
	}

	DefaultTable()[PairKey{true, world.Internal, world.Internal}] = 0
	if DefaultTable().Probability(true, world.Internal, world.Internal) != 0.8 {
		t.Error("DefaultTable returned shared storage")
	}
}
