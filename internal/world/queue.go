package world

import "container/heap"

// DeliveryQueue is a min-ordered queue of ticks at which spikes are due at
// the postsynaptic neuron. The zero value is an empty queue.
type DeliveryQueue struct {
	ticks tickHeap
}

// Schedule adds a delivery due at tick t.
func (q *DeliveryQueue) Schedule(t Tick) {
	heap.Push(&q.ticks, t)
}

// Len returns the number of pending deliveries.
func (q *DeliveryQueue) Len() int {
	return len(q.ticks)
}

// Next returns the earliest pending delivery tick.
func (q *DeliveryQueue) Next() (Tick, bool) {
	if len(q.ticks) == 0 {
		return 0, false
	}
	return q.ticks[0], true
}

// PopDue removes every delivery due at or before now and returns how many
// were removed.
func (q *DeliveryQueue) PopDue(now Tick) int {
	n := 0
	for len(q.ticks) > 0 && q.ticks[0] <= now {
		heap.Pop(&q.ticks)
		n++
	}
	return n
}

// Clone returns an independent copy of the queue.
func (q DeliveryQueue) Clone() DeliveryQueue {
	if q.ticks == nil {
		return DeliveryQueue{}
	}
	c := make(tickHeap, len(q.ticks))
	copy(c, q.ticks)
	return DeliveryQueue{ticks: c}
}

type tickHeap []Tick

func (h tickHeap) Len() int           { return len(h) }
func (h tickHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h tickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *tickHeap) Push(x any) {
	*h = append(*h, x.(Tick))
}

func (h *tickHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
