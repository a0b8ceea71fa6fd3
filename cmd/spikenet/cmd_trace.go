package main

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/nvandessel/spikenet/internal/neuron"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/world"
	"github.com/spf13/cobra"
)

// Default injected currents for the single-neuron trace.
const (
	defaultIzhikevichCurrent    = 10.0
	defaultHindmarshRoseCurrent = 3.0
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace a single neuron under constant input",
		Long: `Integrate one isolated neuron with a constant injected current and print
every state variable per tick as CSV on stdout. Morphology parameters come
from the configuration.

Examples:
  spikenet trace --model izhikevich --current 10 --ticks 500
  spikenet trace --model hindmarsh_rose --current 3 --ticks 5000 > hr.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			modelName, _ := cmd.Flags().GetString("model")
			model, err := world.ParseModel(modelName)
			if err != nil {
				return err
			}
			ticks, _ := cmd.Flags().GetUint64("ticks")
			current, _ := cmd.Flags().GetFloat64("current")
			if !cmd.Flags().Changed("current") {
				current = defaultIzhikevichCurrent
				if model == world.HindmarshRose {
					current = defaultHindmarshRoseCurrent
				}
			}

			var probe *neuron.Probe
			switch model {
			case world.HindmarshRose:
				m := cfg.Morphology.HindmarshRose
				if err := m.Validate(); err != nil {
					return err
				}
				probe = neuron.NewHindmarshRoseProbe(topology.DefaultParams().HindmarshRoseInitial, m, current)
			default:
				m := cfg.Morphology.Izhikevich
				if err := m.Validate(); err != nil {
					return err
				}
				noise, _ := cmd.Flags().GetFloat64("noise")
				probe = neuron.NewIzhikevichProbe(m.RestingState(), m, current, noise, cfg.Network.Seed)
			}

			return writeProbe(cmd, probe, ticks)
		},
	}

	cmd.Flags().String("model", "izhikevich", "Neuron model: izhikevich or hindmarsh_rose")
	cmd.Flags().Uint64("ticks", 1000, "Number of ticks to trace")
	cmd.Flags().Float64("current", 0, "Injected current (default 10 for izhikevich, 3 for hindmarsh_rose)")
	cmd.Flags().Float64("noise", 0, "Upper bound of the uniform noise current (izhikevich only)")

	return cmd
}

func writeProbe(cmd *cobra.Command, probe *neuron.Probe, ticks uint64) error {
	w := csv.NewWriter(cmd.OutOrStdout())

	cols := probe.Columns()
	record := make([]string, 0, len(cols)+2)
	record = append(record, "tick")
	record = append(record, cols...)
	record = append(record, "spike")
	if err := w.Write(record); err != nil {
		return err
	}

	for i := uint64(0); i < ticks; i++ {
		smp := probe.Step()
		record = record[:0]
		record = append(record, strconv.FormatUint(uint64(smp.Tick), 10))
		for _, v := range smp.Values {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		spike := "0"
		if smp.Spike {
			spike = "1"
		}
		record = append(record, spike)
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write tick %d: %w", smp.Tick, err)
		}
	}

	w.Flush()
	return w.Error()
}
