// Package plasticity implements spike-timing-dependent plasticity.
//
// Each synapse counts the ticks since its presynaptic and postsynaptic
// neurons last fired. When the presynaptic neuron fires the synapse is
// depressed in proportion to how recently the postsynaptic neuron fired;
// when the postsynaptic neuron fires it is potentiated in proportion to how
// recently the presynaptic neuron fired.
package plasticity

import (
	"context"
	"fmt"
	"math"

	"github.com/nvandessel/spikenet/internal/parallel"
	"github.com/nvandessel/spikenet/internal/world"
)

// Config holds the STDP parameters.
type Config struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	MaxLTP   float64 `json:"max_ltp" yaml:"max_ltp"`
	MaxLTD   float64 `json:"max_ltd" yaml:"max_ltd"`
	HalfLife float64 `json:"half_life" yaml:"half_life"`

	// StrengthBound clamps strength to [-StrengthBound, StrengthBound]
	// after each update. Zero leaves strength unbounded.
	StrengthBound float64 `json:"strength_bound" yaml:"strength_bound"`
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		MaxLTP:   0.1,
		MaxLTD:   -0.1,
		HalfLife: 20,
	}
}

// Validate rejects non-finite parameters, a non-positive half-life and a
// negative bound.
func (c Config) Validate() error {
	for name, v := range map[string]float64{"max_ltp": c.MaxLTP, "max_ltd": c.MaxLTD, "half_life": c.HalfLife, "strength_bound": c.StrengthBound} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("plasticity: %s must be finite", name)
		}
	}
	if c.HalfLife <= 0 {
		return fmt.Errorf("plasticity: half_life must be positive, got %g", c.HalfLife)
	}
	if c.StrengthBound < 0 {
		return fmt.Errorf("plasticity: strength_bound must be non-negative, got %g", c.StrengthBound)
	}
	return nil
}

// advance moves a counter one tick forward, or resets it when its side fired.
func advance(dt uint64, fired bool) uint64 {
	if fired {
		return 0
	}
	if dt == world.NeverSpiked {
		return dt
	}
	return dt + 1
}

// Update applies one tick of STDP to a single synapse.
func (c Config) Update(syn *world.Synapse, rule *world.STDPLearningRule, preFired, postFired bool) {
	rule.PreDt = advance(rule.PreDt, preFired)
	rule.PostDt = advance(rule.PostDt, postFired)

	if preFired {
		syn.Strength += c.MaxLTD / (1 + float64(rule.PostDt)/c.HalfLife)
	}
	if postFired {
		syn.Strength += c.MaxLTP / (1 + float64(rule.PreDt)/c.HalfLife)
	}
	if b := c.StrengthBound; b > 0 {
		syn.Strength = max(-b, min(syn.Strength, b))
	}
}

type item struct {
	syn  *world.Synapse
	rule *world.STDPLearningRule
}

// Stage updates every synapse of a frozen store once per tick.
type Stage struct {
	store   *world.Store
	cfg     Config
	workers int
	items   []item
}

// NewStage creates the STDP stage. The store must be frozen. The
// parameters of a disabled config are not validated.
func NewStage(s *world.Store, cfg Config, workers int) (*Stage, error) {
	if !s.Frozen() {
		return nil, fmt.Errorf("plasticity: store must be frozen")
	}
	if cfg.Enabled {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	items := make([]item, s.NumSynapses())
	for i := range items {
		items[i].syn, items[i].rule = s.Synapse(world.SynapseID(i))
	}
	return &Stage{store: s, cfg: cfg, workers: workers, items: items}, nil
}

// Run executes one tick of plasticity. It reads the action-potential
// markers set by this tick's integrators. A disabled stage does nothing.
func (st *Stage) Run(ctx context.Context, tick world.Tick) error {
	if !st.cfg.Enabled {
		return nil
	}
	err := parallel.ForEach(ctx, len(st.items), st.workers, func(ctx context.Context, _, lo, hi int) error {
		for _, it := range st.items[lo:hi] {
			pre := st.store.Neuron(it.syn.Pre).ActionPotential
			post := st.store.Neuron(it.syn.Post).ActionPotential
			st.cfg.Update(it.syn, it.rule, pre, post)
		}
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("plasticity at tick %d: %w", tick, err)
	}
	return nil
}
