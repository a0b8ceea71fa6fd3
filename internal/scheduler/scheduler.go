// Package scheduler runs the per-tick stage pipeline over a frozen network.
//
// Each tick runs, in order: the neuron integrators (Hindmarsh-Rose and
// Izhikevich concurrently), an optional finiteness check, synaptic
// transmission, plasticity, the output sinks and finally action-potential
// retirement. Every stage finishes before the next one starts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/neuron"
	"github.com/nvandessel/spikenet/internal/pacing"
	"github.com/nvandessel/spikenet/internal/plasticity"
	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/trace"
	"github.com/nvandessel/spikenet/internal/transmission"
	"github.com/nvandessel/spikenet/internal/world"
)

// ErrFinished is returned by Run once a run has completed.
var ErrFinished = errors.New("scheduler: run already finished")

// Options configures a Scheduler.
type Options struct {
	// Workers bounds the goroutines per stage. Zero means one per CPU.
	Workers int

	// NoiseMax is the upper bound of the Izhikevich noise current. Zero disables noise.
	NoiseMax float64

	// Seed seeds the noise stream.
	Seed uint64

	Plasticity   plasticity.Config
	Transmission transmission.Options

	// Sink receives one sample per tick. Nil disables output.
	Sink trace.Sink

	// Pacer, when set, holds each tick to wall-clock time.
	Pacer *pacing.Pacer

	// CheckFinite makes Step fail with a *neuron.DivergenceError as soon as
	// any neuron state becomes NaN or infinite.
	CheckFinite bool

	// ProgressEvery logs progress every n ticks. Zero disables progress logs.
	ProgressEvery uint64

	Logger *slog.Logger
	Events *logging.EventLogger
}

// Scheduler owns the stages and the clock of one run.
type Scheduler struct {
	store  *world.Store
	opts   Options
	clock  Clock
	logger *slog.Logger

	hr   *neuron.HindmarshRoseIntegrator
	izh  *neuron.IzhikevichIntegrator
	tx   *transmission.Stage
	stdp *plasticity.Stage

	sample   trace.Sample
	spikes   uint64
	finished bool
}

// New freezes s and builds the stage pipeline.
func New(s *world.Store, opts Options) (*Scheduler, error) {
	s.Freeze()

	opts.Transmission.Workers = opts.Workers
	tx, err := transmission.New(s, opts.Transmission)
	if err != nil {
		return nil, err
	}
	stdp, err := plasticity.NewStage(s, opts.Plasticity, opts.Workers)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Scheduler{
		store:  s,
		opts:   opts,
		logger: logger,
		hr:     neuron.NewHindmarshRoseIntegrator(s, opts.Workers),
		izh:    neuron.NewIzhikevichIntegrator(s, opts.Workers, opts.NoiseMax, rng.New(opts.Seed)),
		tx:     tx,
		stdp:   stdp,
		sample: trace.NewSample(s.NumNeurons()),
	}, nil
}

// Now returns the next tick to be simulated.
func (sc *Scheduler) Now() world.Tick {
	return sc.clock.Now()
}

// Spikes returns the number of action potentials fired so far.
func (sc *Scheduler) Spikes() uint64 {
	return sc.spikes
}

// Step simulates one tick.
func (sc *Scheduler) Step(ctx context.Context) error {
	tick := sc.clock.Now()

	if sc.opts.Pacer != nil {
		lag, err := sc.opts.Pacer.Wait(ctx, tick)
		if err != nil {
			return err
		}
		if lag > 0 {
			sc.logger.Warn("simulation is behind real time", "tick", tick, "lag", lag)
			sc.opts.Events.Log(map[string]any{"event": "slippage", "tick": tick, "lag_ms": lag.Milliseconds()})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sc.hr.Run(gctx, tick) })
	g.Go(func() error { return sc.izh.Run(gctx, tick) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("integrate tick %d: %w", tick, err)
	}

	if sc.opts.CheckFinite {
		if err := neuron.CheckFinite(sc.store, tick); err != nil {
			return fmt.Errorf("check tick %d: %w", tick, err)
		}
	}

	if err := sc.tx.Run(ctx, tick); err != nil {
		return err
	}
	if err := sc.stdp.Run(ctx, tick); err != nil {
		return err
	}

	sc.sample.Fill(sc.store, tick)
	fired := sc.sample.SpikeCount()
	sc.spikes += uint64(fired)
	if sc.opts.Sink != nil {
		if err := sc.opts.Sink.WriteTick(sc.sample); err != nil {
			return fmt.Errorf("write tick %d: %w", tick, err)
		}
	}

	transmission.Retire(sc.store)
	sc.clock.Advance()

	sc.logger.Log(ctx, logging.LevelTrace, "tick", "tick", tick, "spikes", fired, "delivered", sc.tx.Delivered())
	if every := sc.opts.ProgressEvery; every > 0 && uint64(tick+1)%every == 0 {
		sc.logger.Info("progress", "tick", tick+1, "spikes", sc.spikes)
		sc.opts.Events.Log(map[string]any{"event": "progress", "tick": tick + 1, "spikes": sc.spikes})
	}
	return nil
}

// Run simulates ticks steps. Cancelling ctx stops the run between ticks and
// returns ctx.Err(). A scheduler runs once: later calls return ErrFinished.
func (sc *Scheduler) Run(ctx context.Context, ticks uint64) error {
	if sc.finished {
		return ErrFinished
	}
	sc.finished = true

	start := time.Now()
	startEvent := map[string]any{
		"event":    "start",
		"neurons":  sc.store.NumNeurons(),
		"synapses": sc.store.NumSynapses(),
		"ticks":    ticks,
		"seed":     sc.opts.Seed,
	}
	if sc.opts.Pacer != nil {
		startEvent["tick_duration"] = sc.opts.Pacer.TickDuration().String()
		sc.logger.Info("run started",
			"neurons", sc.store.NumNeurons(),
			"synapses", sc.store.NumSynapses(),
			"ticks", ticks,
			"tick_duration", sc.opts.Pacer.TickDuration())
	} else {
		sc.logger.Info("run started",
			"neurons", sc.store.NumNeurons(),
			"synapses", sc.store.NumSynapses(),
			"ticks", ticks)
	}
	sc.opts.Events.Log(startEvent)

	for i := uint64(0); i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			sc.logger.Warn("run interrupted", "tick", sc.clock.Now())
			sc.opts.Events.Log(map[string]any{"event": "interrupted", "tick": sc.clock.Now()})
			return err
		}
		if err := sc.Step(ctx); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	finishEvent := map[string]any{
		"event":      "finish",
		"ticks":      ticks,
		"spikes":     sc.spikes,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	attrs := []any{"ticks", ticks, "spikes", sc.spikes, "elapsed", elapsed}
	if sc.opts.Pacer != nil {
		slippage := sc.opts.Pacer.Slippage()
		finishEvent["max_slippage_ms"] = slippage.Milliseconds()
		attrs = append(attrs, "max_slippage", slippage)
	}
	sc.logger.Info("run finished", attrs...)
	sc.opts.Events.Log(finishEvent)
	return nil
}
