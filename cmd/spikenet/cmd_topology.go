package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/nvandessel/spikenet/internal/rng"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/world"
	"github.com/spf13/cobra"
)

// pairCount is the number of synapses generated for one connection class.
type pairCount struct {
	SameColumn bool   `json:"same_column"`
	Pre        string `json:"pre"`
	Post       string `json:"post"`
	Synapses   int    `json:"synapses"`
}

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Generate the network and print its connection statistics",
		Long: `Generate the layered-column network without simulating it and print the
neuron and synapse counts, broken down by connection class.

Examples:
  spikenet topology
  spikenet topology --columns 2 --seed 7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("columns") {
				cfg.Network.Columns, _ = cmd.Flags().GetInt("columns")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Network.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			params, err := cfg.TopologyParams()
			if err != nil {
				return err
			}
			summary, err := topology.Generate(world.NewStore(), params, rng.New(cfg.Network.Seed))
			if err != nil {
				return fmt.Errorf("failed to generate network: %w", err)
			}
			pairs := sortedPairs(summary)

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"summary": summary,
					"pairs":   pairs,
				})
			}

			fmt.Fprintf(out, "Neurons:  %d\n", summary.Neurons)
			fmt.Fprintf(out, "Synapses: %d (%d excitatory, %d inhibitory)\n", summary.Synapses, summary.Excitatory, summary.Inhibitory)
			fmt.Fprintln(out)
			for _, p := range pairs {
				scope := "inter"
				if p.SameColumn {
					scope = "intra"
				}
				fmt.Fprintf(out, "  %s %-9s -> %-9s %d\n", scope, p.Pre, p.Post, p.Synapses)
			}
			return nil
		},
	}

	cmd.Flags().Int("columns", 0, "Number of cortical columns")
	cmd.Flags().Uint64("seed", 0, "Seed for topology generation")

	return cmd
}

// sortedPairs lists the connection classes that produced synapses,
// intra-column classes first, then by layer.
func sortedPairs(summary topology.Summary) []pairCount {
	keys := make([]topology.PairKey, 0, len(summary.ByPair))
	for k := range summary.ByPair {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b topology.PairKey) int {
		if a.SameColumn != b.SameColumn {
			if a.SameColumn {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Pre, b.Pre); c != 0 {
			return c
		}
		return cmp.Compare(a.Post, b.Post)
	})

	pairs := make([]pairCount, len(keys))
	for i, k := range keys {
		pairs[i] = pairCount{SameColumn: k.SameColumn, Pre: k.Pre.String(), Post: k.Post.String(), Synapses: summary.ByPair[k]}
	}
	return pairs
}
