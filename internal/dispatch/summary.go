package dispatch

import "time"

// Window is a run of consecutive periods with the same action.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Energy float64   `json:"energy_kwh"`
	// AverageValue weights the ledger value by the energy moved.
	AverageValue float64 `json:"average_value"`
}

// StorageSummary aggregates one storage's ledger rows.
type StorageSummary struct {
	Storage          string   `json:"storage"`
	InitialEnergy    float64  `json:"initial_energy_kwh"`
	FinalEnergy      float64  `json:"final_energy_kwh"`
	Charged          float64  `json:"charged_kwh"`
	Discharged       float64  `json:"discharged_kwh"`
	ChargeWindows    []Window `json:"charge_windows,omitempty"`
	DischargeWindows []Window `json:"discharge_windows,omitempty"`
}

type windowAcc struct {
	window   Window
	weighted float64
}

// Summarize groups the ledger by storage in order of first appearance.
func Summarize(ledger []LedgerRow) []StorageSummary {
	var out []StorageSummary
	index := map[string]int{}
	open := map[string]*windowAcc{}
	openAction := map[string]Action{}

	closeWindow := func(name string) {
		acc, ok := open[name]
		if !ok {
			return
		}
		if acc.window.Energy > 0 {
			acc.window.AverageValue = acc.weighted / acc.window.Energy
		}
		s := &out[index[name]]
		if openAction[name] == ActionCharging {
			s.ChargeWindows = append(s.ChargeWindows, acc.window)
		} else {
			s.DischargeWindows = append(s.DischargeWindows, acc.window)
		}
		delete(open, name)
		delete(openAction, name)
	}

	for _, row := range ledger {
		i, ok := index[row.Storage]
		if !ok {
			i = len(out)
			index[row.Storage] = i
			out = append(out, StorageSummary{Storage: row.Storage, InitialEnergy: row.EnergyStart})
		}
		s := &out[i]
		s.FinalEnergy = row.EnergyEnd
		moved := row.EnergyEnd - row.EnergyStart
		switch row.Action {
		case ActionCharging:
			s.Charged += moved
		case ActionDischarging:
			s.Discharged -= moved
			moved = -moved
		default:
			closeWindow(row.Storage)
			continue
		}
		if openAction[row.Storage] != row.Action {
			closeWindow(row.Storage)
			open[row.Storage] = &windowAcc{window: Window{Start: row.Start}}
			openAction[row.Storage] = row.Action
		}
		acc := open[row.Storage]
		acc.window.End = row.End
		acc.window.Energy += moved
		acc.weighted += moved * row.Value
	}
	for _, s := range out {
		closeWindow(s.Storage)
	}
	return out
}
