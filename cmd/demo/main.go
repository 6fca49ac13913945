package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"energy-network/internal/element"
	"energy-network/internal/horizon"
	"energy-network/internal/lp"
	"energy-network/internal/network"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Demo:
// - Plan an adaptive horizon from a start time
// - Build a small home network in code: grid, solar, load and a battery
// - Solve it and show how the battery follows a time-of-use tariff
func main() {
	atFlag := flag.String("at", "2024-06-01T06:00:00Z", "Planning start (RFC3339)")
	rows := flag.Int("n", 24, "Number of periods to print")
	mode := flag.String("mode", "continuous", "Direction escalation: continuous, first or all")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	at, err := time.Parse(time.RFC3339, *atFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --at")
	}
	escalation, err := lp.ParseMode(*mode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --mode")
	}

	plan, err := horizon.Build(at, horizon.Config{
		Tiers: []horizon.Tier{
			{Duration: 15 * time.Minute, MinCount: 4},
			{Duration: time.Hour},
		},
		TotalSteps: 26,
		Horizon:    24 * time.Hour,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("plan horizon")
	}
	grid := plan.Grid

	// Per-period inputs, sampled at each period's midpoint.
	bounds := grid.Boundaries()
	tariff := make([]float64, grid.Len())
	solar := make([]float64, grid.Len())
	load := make([]float64, grid.Len())
	for i := range tariff {
		mid := bounds[i].Add(grid.Durations[i] / 2)
		h := float64(mid.Hour()) + float64(mid.Minute())/60
		tariff[i] = touPrice(mid.Hour())
		solar[i] = math.Max(0, 6*math.Sin(math.Pi*(h-6)/13))
		load[i] = 0.5
		if h >= 17 && h < 22 {
			load[i] = 2.5
		}
	}

	var n network.Network
	n.Add(element.Grid("grid"), element.Bus("house"), element.Source("pv"), element.Sink("load"))
	n.Connect("import", "grid", "house",
		segment.PowerLimit{MaxForward: timeseries.Scalar(10), MaxReverse: timeseries.Scalar(5)},
		segment.Pricing{Forward: timeseries.Values(tariff...), Reverse: timeseries.Scalar(-0.04)},
		segment.DemandPricing{Price: 0.12, Block: 30 * time.Minute, Cycle: 24 * time.Hour},
	)
	n.Connect("pv-link", "pv", "house",
		segment.PowerLimit{MaxForward: timeseries.Values(solar...), MaxReverse: timeseries.Scalar(0)},
		segment.Efficiency{Forward: timeseries.Scalar(0.97)},
	)
	n.Connect("demand", "house", "load",
		segment.PowerLimit{MaxForward: timeseries.Values(load...), MaxReverse: timeseries.Scalar(0), Fixed: true},
	)
	battery := network.Battery{
		Name:                "battery",
		Capacity:            13.5,
		Initial:             4,
		Thresholds:          []float64{1.35, 12.15},
		Bus:                 "house",
		MaxCharge:           timeseries.Scalar(5),
		MaxDischarge:        timeseries.Scalar(5),
		ChargeEfficiency:    timeseries.Scalar(0.95),
		DischargeEfficiency: timeseries.Scalar(0.95),
		BandPrices: []network.BandPrice{
			{Discharge: timeseries.Scalar(0.20)},
			{},
			{Charge: timeseries.Scalar(0.05)},
		},
	}
	if err := n.AddBattery(battery); err != nil {
		log.Fatal().Err(err).Msg("add battery")
	}

	res, err := network.Optimize(n, grid, lp.Options{
		Policy: lp.Policy{Groups: map[string]lp.Mode{"*/direction": escalation}},
		Logger: log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid network")
	}
	if res.Status != lp.StatusOptimal {
		log.Fatal().Stringer("status", res.Status).Str("error", res.Error).Msg("no optimal dispatch")
	}

	bands, err := battery.BandNames()
	if err != nil {
		log.Fatal().Err(err).Msg("battery bands")
	}
	energy := make([]float64, grid.Len()+1)
	for _, band := range bands {
		for i, e := range res.Elements[band].Energy {
			energy[i] += e
		}
	}

	fmt.Printf("Planned %d periods %v from %s\n", grid.Len(), plan.Counts, grid.Start.Format(time.RFC3339))
	fmt.Printf("Starting energy=%.2f kWh\n\n", energy[0])
	imp := res.Connections["import"].Net()
	inv := res.Connections[battery.InverterName()].Net()
	price := res.Elements["house"].Price
	for i := 0; i < min(*rows, grid.Len()); i++ {
		fmt.Printf(
			"%s %6s tariff=%5.2f  price=%6.3f  solar=%5.2f  load=%5.2f  grid=%6.2f  battery=%6.2f  energy=%5.2f→%5.2f\n",
			bounds[i].Format("01-02 15:04"),
			grid.Durations[i],
			tariff[i],
			price[i],
			solar[i],
			load[i],
			imp[i],
			inv[i],
			energy[i],
			energy[i+1],
		)
	}
	fmt.Printf("\nDone. Total cost=$%.2f (import $%.2f)  nodes=%d\n", res.Objective, res.Costs["import"], res.Nodes)
}

// touPrice is a three-level time-of-use tariff in $/kWh.
func touPrice(hour int) float64 {
	switch {
	case hour >= 16 && hour < 21:
		return 0.48
	case hour >= 9 && hour < 14:
		return 0.12
	default:
		return 0.28
	}
}
