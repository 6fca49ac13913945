package dispatch

import (
	"sort"
	"time"

	"energy-network/internal/element"
	"energy-network/internal/network"
	"energy-network/internal/timeseries"
)

// Action is a human-friendly operating mode for a period. Keep these values
// stable; they are written to CSV.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// idleKW is the net power below which storage counts as idle.
const idleKW = 1e-6

// ActionFromPower classifies net power into a storage, positive when charging.
func ActionFromPower(kw float64) Action {
	switch {
	case kw > idleKW:
		return ActionCharging
	case kw < -idleKW:
		return ActionDischarging
	default:
		return ActionIdle
	}
}

// LedgerRow is one period of one storage schedule.
type LedgerRow struct {
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Hours   float64   `json:"hours"`
	Storage string    `json:"storage"`
	Action  Action    `json:"action"`

	EnergyStart float64 `json:"energy_start"`
	EnergyEnd   float64 `json:"energy_end"`
	// Power is the average net power into the storage in kW.
	Power float64 `json:"power"`
	// Value is the marginal value of stored energy in the period: the
	// energy balance shadow price for a storage element, the internal bus
	// price for a battery total.
	Value float64 `json:"value"`
}

// buildLedger lists every storage element, then every battery as the sum of
// its bands.
func buildLedger(grid timeseries.Grid, res *network.Result, batteries map[string][]string) []LedgerRow {
	if res == nil || res.Elements == nil {
		return nil
	}
	var ledger []LedgerRow
	for _, name := range res.ElementNames() {
		el := res.Elements[name]
		if el.Kind != element.KindStorage {
			continue
		}
		ledger = append(ledger, schedule(grid, name, el.Energy, el.Shadow["energy_balance"])...)
	}

	names := make([]string, 0, len(batteries))
	for name := range batteries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		total := make([]float64, grid.Len()+1)
		for _, band := range batteries[name] {
			for i, e := range res.Elements[band].Energy {
				total[i] += e
			}
		}
		ledger = append(ledger, schedule(grid, name, total, res.Elements[name].Price)...)
	}
	return ledger
}

func schedule(grid timeseries.Grid, name string, energy, value []float64) []LedgerRow {
	bounds := grid.Boundaries()
	hours := grid.Hours()
	rows := make([]LedgerRow, 0, grid.Len())
	for t := 0; t < grid.Len() && t+1 < len(energy); t++ {
		power := (energy[t+1] - energy[t]) / hours[t]
		row := LedgerRow{
			Index:       t,
			Start:       bounds[t],
			End:         bounds[t+1],
			Hours:       hours[t],
			Storage:     name,
			Action:      ActionFromPower(power),
			EnergyStart: energy[t],
			EnergyEnd:   energy[t+1],
			Power:       power,
		}
		if t < len(value) {
			row.Value = value[t]
		}
		rows = append(rows, row)
	}
	return rows
}
