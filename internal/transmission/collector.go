package transmission

import (
	"cmp"
	"slices"

	"github.com/nvandessel/spikenet/internal/world"
)

type delivery struct {
	post   world.NeuronID
	amount float64
}

// Collector gathers deliveries during the parallel collect phase and
// applies them to postsynaptic PSP accumulators afterwards. Each chunk
// writes only to its own shard.
//
// Apply sums every neuron's deliveries in ascending amount order, so the
// PSP increment is bit-identical for any ordering of the same deliveries.
type Collector struct {
	shards [][]delivery
	merged []delivery

	// MaxAmplitude clamps each delivered amplitude to [-MaxAmplitude,
	// MaxAmplitude]. Zero disables the clamp.
	MaxAmplitude float64
}

// Reset prepares the collector for a collect phase with the given number of chunks.
func (c *Collector) Reset(chunks int) {
	if cap(c.shards) < chunks {
		c.shards = make([][]delivery, chunks)
	}
	c.shards = c.shards[:chunks]
	for i := range c.shards {
		c.shards[i] = c.shards[i][:0]
	}
}

// Add records a delivery of amount to post in the given chunk's shard.
func (c *Collector) Add(chunk int, post world.NeuronID, amount float64) {
	if c.MaxAmplitude > 0 {
		amount = max(-c.MaxAmplitude, min(amount, c.MaxAmplitude))
	}
	c.shards[chunk] = append(c.shards[chunk], delivery{post: post, amount: amount})
}

// Apply merges the shards, adds each neuron's summed input to its PSP and
// returns the number of deliveries applied.
func (c *Collector) Apply(s *world.Store) int {
	c.merged = c.merged[:0]
	for _, sh := range c.shards {
		c.merged = append(c.merged, sh...)
	}
	if len(c.merged) == 0 {
		return 0
	}

	slices.SortFunc(c.merged, func(a, b delivery) int {
		if a.post != b.post {
			return cmp.Compare(a.post, b.post)
		}
		return cmp.Compare(a.amount, b.amount)
	})

	for i := 0; i < len(c.merged); {
		post := c.merged[i].post
		sum := 0.0
		for ; i < len(c.merged) && c.merged[i].post == post; i++ {
			sum += c.merged[i].amount
		}
		s.Neuron(post).PSP += sum
	}
	return len(c.merged)
}
