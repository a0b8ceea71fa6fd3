// Package rng provides seeded random sources and the distributions used by
// topology generation and neuron noise.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws from gonum distributions over a single seeded PCG stream.
// It is not safe for concurrent use.
type Sampler struct {
	src rand.Source
	r   *rand.Rand
}

// New returns a Sampler seeded deterministically from seed.
func New(seed uint64) *Sampler {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Sampler{src: src, r: rand.New(src)}
}

// Bernoulli reports the outcome of a trial that succeeds with probability p.
func (s *Sampler) Bernoulli(p float64) bool {
	return distuv.Bernoulli{P: p, Src: s.src}.Rand() == 1
}

// Uniform draws from [lo, hi).
func (s *Sampler) Uniform(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

// IntRange draws an integer uniformly from [lo, hi). hi must exceed lo.
func (s *Sampler) IntRange(lo, hi int) int {
	return lo + s.r.IntN(hi-lo)
}

// Fill writes len(dst) draws from [lo, hi) into dst.
func (s *Sampler) Fill(dst []float64, lo, hi float64) {
	u := distuv.Uniform{Min: lo, Max: hi, Src: s.src}
	for i := range dst {
		dst[i] = u.Rand()
	}
}
