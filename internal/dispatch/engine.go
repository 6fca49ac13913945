// Package dispatch runs the planning pipeline: plan the horizon, resolve
// forecasts onto it, build the network, solve, and tabulate storage
// schedules.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"energy-network/internal/config"
	"energy-network/internal/horizon"
	"energy-network/internal/network"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Engine struct {
	// Prices serves live forecasts; nil limits forecasts to offline sources.
	Prices config.PriceSource
	Logger zerolog.Logger
}

func New(prices config.PriceSource, logger zerolog.Logger) *Engine {
	return &Engine{Prices: prices, Logger: logger}
}

// Result is one planned dispatch.
type Result struct {
	ID      string          `json:"id"`
	Plan    horizon.Plan    `json:"-"`
	Network *network.Result `json:"result"`
	Ledger  []LedgerRow     `json:"ledger,omitempty"`
	Elapsed time.Duration   `json:"-"`
}

// Run plans a dispatch starting at now. A network that fails validation is
// an error; an infeasible or unbounded one is reported in the result status.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, now time.Time) (*Result, error) {
	started := time.Now()
	plan, err := cfg.Plan(now)
	if err != nil {
		return nil, fmt.Errorf("plan horizon: %w", err)
	}
	forecasts, err := cfg.ResolveForecasts(ctx, plan.Grid, e.Prices)
	if err != nil {
		return nil, fmt.Errorf("resolve forecasts: %w", err)
	}
	n, err := cfg.Network(forecasts)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Solver.Options()
	if err != nil {
		return nil, err
	}
	opts.Logger = e.Logger

	bands := make(map[string][]string, len(cfg.Batteries))
	for _, bc := range cfg.Batteries {
		b, err := bc.Battery(forecasts)
		if err != nil {
			return nil, fmt.Errorf("battery %s: %w", bc.Name, err)
		}
		names, err := b.BandNames()
		if err != nil {
			return nil, err
		}
		bands[b.Name] = names
	}

	res, err := network.Optimize(n, plan.Grid, opts)
	if err != nil {
		return nil, err
	}
	out := &Result{
		ID:      uuid.NewString(),
		Plan:    plan,
		Network: res,
		Ledger:  buildLedger(plan.Grid, res, bands),
		Elapsed: time.Since(started),
	}
	e.Logger.Debug().
		Str("id", out.ID).
		Stringer("status", res.Status).
		Float64("objective", res.Objective).
		Int("periods", plan.Grid.Len()).
		Dur("elapsed", out.Elapsed).
		Msg("dispatch planned")
	return out, nil
}
