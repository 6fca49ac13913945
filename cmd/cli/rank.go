package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"energy-network/internal/analysis"
	"energy-network/internal/data"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRankCommand() *cobra.Command {
	var dataPaths string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank pricing nodes by arbitrage value",
		Long: `Rank the locations in saved Grid Status responses by the profit a
lossless 1 kW / 1 kWh battery makes against their prices.`,
		Example: `  cli rank --data sample_data.json
  cli rank --data data/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			byLoc := map[string][]data.LMPInterval{}
			for _, p := range splitPaths(dataPaths) {
				files, err := jsonFiles(p)
				if err != nil {
					return err
				}
				for _, f := range files {
					resp, err := data.LoadGridStatusJSON(f)
					if err != nil {
						return err
					}
					for loc, rows := range data.GroupByLocation(resp) {
						byLoc[loc] = append(byLoc[loc], rows...)
					}
				}
			}

			ranked, failed := analysis.RankLocations(byLoc)
			for loc, err := range failed {
				log.Warn().Err(err).Str("location", loc).Msg("skipped location")
			}
			if jsonOutput {
				return printJSON(ranked)
			}

			fmt.Printf("%-4s %-18s %-8s %-8s %-10s %-15s %-10s\n", "rank", "location", "market", "periods", "p95-p05", "min/max", "value$")
			for i, r := range ranked {
				fmt.Printf("%-4d %-18s %-8s %-8d %-10.4f %-6.3f/%-8.3f %-10.4f\n",
					i+1, r.Location, r.Market, r.Periods, r.Spread, r.Min, r.Max, r.ArbitrageValue)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPaths, "data", "sample_data.json", "comma-separated JSON paths or directories")

	return cmd
}

// jsonFiles expands a directory into the JSON files directly inside it.
func jsonFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	return out, nil
}

func splitPaths(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
