// Package pacing keeps a simulation in step with wall-clock time.
package pacing

import (
	"context"
	"sync"
	"time"

	"github.com/nvandessel/spikenet/internal/world"
)

// DefaultTickDuration is one millisecond of model time per tick.
const DefaultTickDuration = time.Millisecond

// Pacer sleeps so that tick n starts no earlier than start + n*TickDuration.
// It is safe for concurrent use.
type Pacer struct {
	mu       sync.Mutex
	tick     time.Duration
	start    time.Time
	started  bool
	slippage time.Duration

	// injectable clock and sleep for testing
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. A non-positive tick duration uses DefaultTickDuration.
func NewPacer(tick time.Duration) *Pacer {
	if tick <= 0 {
		tick = DefaultTickDuration
	}
	return &Pacer{
		tick:      tick,
		nowFunc:   time.Now,
		sleepFunc: sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TickDuration returns the wall time allotted to one tick.
func (p *Pacer) TickDuration() time.Duration {
	return p.tick
}

// Wait blocks until tick may start. The first call anchors the schedule.
//
// When wall time is already past the tick's slot by more than any lag
// reported before, Wait returns the new lag so the caller can warn that the
// simulation cannot keep up. Otherwise it returns zero.
func (p *Pacer) Wait(ctx context.Context, tick world.Tick) (time.Duration, error) {
	p.mu.Lock()
	now := p.nowFunc()
	if !p.started {
		p.start = now.Add(-time.Duration(tick) * p.tick)
		p.started = true
	}
	due := p.start.Add(time.Duration(tick) * p.tick)
	ahead := due.Sub(now)

	var lag time.Duration
	if ahead < 0 && -ahead > p.slippage {
		p.slippage = -ahead
		lag = p.slippage
	}
	p.mu.Unlock()

	if ahead > 0 {
		if err := p.sleepFunc(ctx, ahead); err != nil {
			return 0, err
		}
	}
	return lag, nil
}

// Slippage returns the largest lag observed so far.
func (p *Pacer) Slippage() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slippage
}
