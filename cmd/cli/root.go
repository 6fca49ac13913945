package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"energy-network/internal/config"
	"energy-network/internal/data"
	"energy-network/internal/dispatch"
	"energy-network/internal/horizon"
	"energy-network/internal/lp"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	atFlag     string
	jsonOutput bool
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Plan energy network dispatch over an adaptive horizon",
		Long: `Plans how storage, the grid and flexible loads should run over the next
hours by solving one linear program over an adaptive period grid: fine
periods near now, coarser ones further out.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "network config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&atFlag, "at", "", "planning start, RFC3339 (default: now)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newOptimizeCommand())
	rootCmd.AddCommand(newHorizonCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newSegmentsCommand())
	rootCmd.AddCommand(newPricesCommand())
	rootCmd.AddCommand(newRankCommand())

	return rootCmd
}

func planningStart() (time.Time, error) {
	if atFlag == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, atFlag)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return at, nil
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(configPath)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newOptimizeCommand() *cobra.Command {
	var (
		outPath string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Plan a dispatch and write the storage ledger as CSV",
		Example: `  cli optimize --config examples/network.yaml --out results/dispatch.csv
  cli optimize -c examples/network.yaml --at 2024-06-01T00:00:00Z --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			at, err := planningStart()
			if err != nil {
				return err
			}

			var prices config.PriceSource
			if apiKey != "" {
				prices = data.NewGridStatusClient(apiKey, os.Getenv("GRIDSTATUS_URL"))
			}
			res, err := dispatch.New(prices, log.Logger).Run(cmd.Context(), cfg, at)
			if err != nil {
				return err
			}
			if res.Network.Status != lp.StatusOptimal {
				return fmt.Errorf("solver status %s: %s", res.Network.Status, res.Network.Error)
			}

			if outPath != "" {
				if err := dispatch.WriteLedgerCSV(outPath, res.Ledger); err != nil {
					return err
				}
				log.Info().Int("rows", len(res.Ledger)).Str("path", outPath).Msg("wrote ledger")
			}
			if jsonOutput {
				return printJSON(res)
			}

			fmt.Printf("Planned %d periods from %s to %s\n",
				res.Plan.Grid.Len(), res.Plan.Grid.Start.Format(time.RFC3339), res.Plan.Grid.End().Format(time.RFC3339))
			fmt.Printf("Total cost=$%.4f status=%s elapsed=%s\n", res.Network.Objective, res.Network.Status, res.Elapsed)
			for _, s := range dispatch.Summarize(res.Ledger) {
				fmt.Printf("%-28s start=%7.3f end=%7.3f charged=%7.3f discharged=%7.3f kWh\n",
					s.Storage, s.InitialEnergy, s.FinalEnergy, s.Charged, s.Discharged)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "ledger CSV path")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("GRIDSTATUS_API_KEY"), "Grid Status API key for live price forecasts")

	return cmd
}

func newHorizonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "horizon",
		Short: "Print the planned periods",
		Long: `Print the planned periods for the configured horizon, or the default
horizon when no config is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			planner := horizon.DefaultConfig()
			if configPath != "" {
				cfg, err := config.LoadUnchecked(configPath)
				if err != nil {
					return err
				}
				planner = cfg.Horizon.Planner()
			}
			at, err := planningStart()
			if err != nil {
				return err
			}
			plan, err := horizon.Build(at, planner)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(plan)
			}

			bounds := plan.Grid.Boundaries()
			for i, d := range plan.Grid.Durations {
				fmt.Printf("%-4d %s  %s\n", i, bounds[i].Format(time.RFC3339), d)
			}
			fmt.Printf("%d periods per tier, ending %s\n", plan.Counts, plan.Grid.End().Format(time.RFC3339))
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a network config without solving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			at, err := planningStart()
			if err != nil {
				return err
			}
			plan, err := cfg.Plan(at)
			if err != nil {
				return err
			}
			// Live forecasts are not fetched; constant stand-ins keep the
			// structural check offline.
			forecasts, err := cfg.ResolveForecasts(cmd.Context(), plan.Grid, offlinePrices{})
			if err != nil {
				return err
			}
			n, err := cfg.Network(forecasts)
			if err != nil {
				return err
			}
			if err := n.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: %d elements, %d connections, %d periods\n",
				configPath, len(n.Elements), len(n.Connections), plan.Grid.Len())
			return nil
		},
	}
}

// offlinePrices answers every live price query with a flat zero forecast.
type offlinePrices struct{}

func (offlinePrices) PriceForecast(_ context.Context, p data.QueryLocationParams) ([]timeseries.Point, error) {
	return []timeseries.Point{{Time: p.StartTime}}, nil
}

func newSegmentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "List segment kinds and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := segment.Catalog()
			if jsonOutput {
				return printJSON(catalog)
			}
			for _, d := range catalog {
				fmt.Printf("%s\n  %s\n", d.Kind, d.Description)
				for _, p := range d.Parameters {
					fmt.Printf("    %-22s %-9s %s\n", p.Name, p.Type, p.Description)
				}
			}
			fmt.Printf("backends: %v\n", lp.BackendNames())
			return nil
		},
	}
}

func newPricesCommand() *cobra.Command {
	var (
		params data.QueryLocationParams
		apiKey string
		start  string
		end    string
	)

	cmd := &cobra.Command{
		Use:     "prices",
		Short:   "Fetch a price forecast from Grid Status in $/kWh",
		Example: `  cli prices --dataset caiso_lmp_day_ahead_hourly --location TH_NP15_GEN-APND --start 2024-06-01T00:00:00Z --end 2024-06-02T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if params.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if params.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			client := data.NewGridStatusClient(apiKey, os.Getenv("GRIDSTATUS_URL"))
			points, err := client.PriceForecast(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(points)
		},
	}

	cmd.Flags().StringVar(&params.DatasetID, "dataset", "caiso_lmp_real_time_5_min", "Grid Status dataset")
	cmd.Flags().StringVar(&params.LocationID, "location", "", "pricing node")
	cmd.Flags().StringVar(&params.Timezone, "timezone", "", "query timezone (default: market)")
	cmd.Flags().StringVar(&start, "start", "", "start time, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "end time, RFC3339")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("GRIDSTATUS_API_KEY"), "Grid Status API key")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
