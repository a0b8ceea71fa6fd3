package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/pacing"
	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/scheduler"
	"github.com/nvandessel/spikenet/internal/store"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/trace"
	"github.com/nvandessel/spikenet/internal/transmission"
	"github.com/nvandessel/spikenet/internal/world"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a network and simulate it",
		Long: `Generate the layered-column network described by the configuration and
run it for the configured number of ticks, writing the membrane trace and
spike files to the output directory.

Interrupting the run (Ctrl+C) stops it between ticks; outputs written so
far are flushed and closed.

Examples:
  spikenet run                                # defaults: 20 columns, 20000 ticks
  spikenet run --columns 2 --ticks 1000       # small network
  spikenet run --real-time                    # one tick per millisecond
  spikenet run --arrow trace.arrow --sqlite run.db --out results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			// Handle SIGINT/SIGTERM for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			logger := newLogger(cmd, cfg.Logging.Level)
			res, err := runSimulation(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			printRunResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Uint64("ticks", 0, "Number of ticks to simulate")
	cmd.Flags().Bool("real-time", false, "Pace ticks to wall-clock time")
	cmd.Flags().Uint64("seed", 0, "Seed for topology generation and noise")
	cmd.Flags().Int("columns", 0, "Number of cortical columns")
	cmd.Flags().String("out", "", "Output directory")
	cmd.Flags().String("arrow", "", "Also write an Arrow IPC trace with this file name")
	cmd.Flags().String("sqlite", "", "Also record the run to a SQLite database with this file name")

	return cmd
}

// applyRunFlags overrides cfg with the run flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ticks") {
		cfg.Run.Ticks, _ = flags.GetUint64("ticks")
	}
	if flags.Changed("real-time") {
		cfg.Run.RealTime, _ = flags.GetBool("real-time")
	}
	if flags.Changed("seed") {
		cfg.Network.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("columns") {
		cfg.Network.Columns, _ = flags.GetInt("columns")
	}
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("arrow") {
		cfg.Output.Arrow, _ = flags.GetString("arrow")
	}
	if flags.Changed("sqlite") {
		cfg.Output.SQLite, _ = flags.GetString("sqlite")
	}
}

// runResult summarizes a finished run.
type runResult struct {
	Neurons     int           `json:"neurons"`
	Synapses    int           `json:"synapses"`
	Excitatory  int           `json:"excitatory"`
	Inhibitory  int           `json:"inhibitory"`
	Ticks       uint64        `json:"ticks"`
	Spikes      uint64        `json:"spikes"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Outputs     []string      `json:"outputs"`
	RunID       int64         `json:"run_id,omitempty"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// runSimulation builds the network described by cfg, runs it and closes
// every output. A cancelled ctx ends the run early without an error.
func runSimulation(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runResult, error) {
	var res runResult

	params, err := cfg.TopologyParams()
	if err != nil {
		return res, err
	}
	s := world.NewStore()
	summary, err := topology.Generate(s, params, rng.New(cfg.Network.Seed))
	if err != nil {
		return res, fmt.Errorf("failed to generate network: %w", err)
	}
	s.Freeze()
	res.Neurons = summary.Neurons
	res.Synapses = summary.Synapses
	res.Excitatory = summary.Excitatory
	res.Inhibitory = summary.Inhibitory

	sinks, recorder, outputs, err := openSinks(ctx, cfg, s)
	if err != nil {
		return res, err
	}
	res.Outputs = outputs
	if recorder != nil {
		res.RunID = recorder.RunID()
	}

	events := logging.NewEventLogger(cfg.Output.Dir, cfg.Logging.Level)
	defer events.Close()

	var pacer *pacing.Pacer
	if cfg.Run.RealTime {
		pacer = pacing.NewPacer(cfg.Run.TickDuration)
	}

	sc, err := scheduler.New(s, scheduler.Options{
		Workers:       cfg.Run.Workers,
		NoiseMax:      cfg.Morphology.NoiseMax,
		Seed:          cfg.Network.Seed,
		Plasticity:    cfg.Plasticity,
		Transmission:  transmission.Options{MaxAmplitude: cfg.Transmission.MaxAmplitude},
		Sink:          sinks,
		Pacer:         pacer,
		CheckFinite:   cfg.Run.CheckFinite,
		ProgressEvery: cfg.Run.ProgressEvery,
		Logger:        logger,
		Events:        events,
	})
	if err != nil {
		sinks.Close()
		return res, err
	}

	start := time.Now()
	runErr := sc.Run(ctx, cfg.Run.Ticks)
	res.Elapsed = time.Since(start)
	res.Ticks = uint64(sc.Now())
	res.Spikes = sc.Spikes()

	closeErr := sinks.Close()
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			res.Interrupted = true
			return res, closeErr
		}
		return res, runErr
	}
	if closeErr != nil {
		return res, fmt.Errorf("failed to close outputs: %w", closeErr)
	}
	return res, nil
}

// openSinks creates every output the configuration enables. The CSV pair is
// written when both file names are set.
func openSinks(ctx context.Context, cfg *config.Config, s *world.Store) (trace.Multi, *store.Recorder, []string, error) {
	out := cfg.Output
	bufSize := int(out.BufferSize.Bytes())
	n := s.NumNeurons()

	var sinks trace.Multi
	var outputs []string
	fail := func(err error) (trace.Multi, *store.Recorder, []string, error) {
		sinks.Close()
		return nil, nil, nil, err
	}

	if out.TraceCSV != "" && out.Spikes != "" {
		w, err := trace.CreateCSV(out.Path(out.TraceCSV), out.Path(out.Spikes), n, bufSize)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
		outputs = append(outputs, out.Path(out.TraceCSV), out.Path(out.Spikes))
	}

	if out.Arrow != "" {
		w, err := trace.CreateArrow(out.Path(out.Arrow), n, out.BatchTicks, bufSize)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
		outputs = append(outputs, out.Path(out.Arrow))
	}

	var recorder *store.Recorder
	if out.SQLite != "" {
		data, err := cfg.Marshal()
		if err != nil {
			return fail(err)
		}
		recorder, err = store.NewRecorder(ctx, out.Path(out.SQLite), s, store.RunInfo{
			Seed:   cfg.Network.Seed,
			Config: string(data),
		})
		if err != nil {
			return fail(fmt.Errorf("failed to open run database: %w", err))
		}
		sinks = append(sinks, recorder)
		outputs = append(outputs, out.Path(out.SQLite))
	}

	return sinks, recorder, outputs, nil
}

func printRunResult(w io.Writer, res runResult) {
	if res.Interrupted {
		fmt.Fprintf(w, "Run interrupted after %d ticks\n", res.Ticks)
	} else {
		fmt.Fprintf(w, "Simulated %d ticks in %v\n", res.Ticks, res.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  neurons:  %d\n", res.Neurons)
	fmt.Fprintf(w, "  synapses: %d (%d excitatory, %d inhibitory)\n", res.Synapses, res.Excitatory, res.Inhibitory)
	fmt.Fprintf(w, "  spikes:   %d\n", res.Spikes)
	for _, o := range res.Outputs {
		fmt.Fprintf(w, "  wrote %s\n", o)
	}
}
