package segment

// Parameter describes one configurable field of a segment.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Description documents a segment kind for listings.
type Description struct {
	Kind        Kind        `json:"kind"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Catalog lists every segment kind with its parameters. Params accept a
// number, a per-period list, or a "@forecast" reference.
func Catalog() []Description {
	return []Description{
		{
			Kind:        KindPassthrough,
			Description: "Forwards power unchanged. Used when a connection has no segments.",
		},
		{
			Kind:        KindPowerLimit,
			Description: "Caps power per direction. Limiting both directions shares the time slice between them.",
			Parameters: []Parameter{
				{Name: "max_forward", Type: "param", Description: "Maximum source to target power in kW"},
				{Name: "max_reverse", Type: "param", Description: "Maximum target to source power in kW"},
				{Name: "fixed", Type: "bool", Description: "Force power to equal the maximum", Default: false},
			},
		},
		{
			Kind:        KindEfficiency,
			Description: "Applies conversion losses on the receiving side of each direction.",
			Parameters: []Parameter{
				{Name: "forward", Type: "param", Description: "Forward efficiency in (0, 1]", Default: 1.0},
				{Name: "reverse", Type: "param", Description: "Reverse efficiency in (0, 1]", Default: 1.0},
			},
		},
		{
			Kind:        KindPricing,
			Description: "Charges price times energy per direction. Negative prices are revenue.",
			Parameters: []Parameter{
				{Name: "forward", Type: "param", Description: "Price per kWh of forward energy"},
				{Name: "reverse", Type: "param", Description: "Price per kWh of reverse energy"},
			},
		},
		{
			Kind:        KindDemandPricing,
			Description: "Charges for the highest block-average power in each billing cycle.",
			Parameters: []Parameter{
				{Name: "price", Type: "float", Description: "Price per kW of peak per cycle"},
				{Name: "block", Type: "duration", Description: "Averaging block length", Default: DefaultDemandBlock.String()},
				{Name: "cycle", Type: "duration", Description: "Billing cycle length", Default: DefaultDemandCycle.String()},
				{Name: "current_block_energy", Type: "float", Description: "kWh already delivered in the current block", Default: 0.0},
				{Name: "peak_so_far", Type: "float", Description: "Peak kW already reached this cycle", Default: 0.0},
				{Name: "direction", Type: "string", Description: "forward or reverse", Default: "forward"},
			},
		},
		{
			Kind:        KindSocPricing,
			Description: "Penalises stored energy below or above thresholds at the end of each period.",
			Parameters: []Parameter{
				{Name: "storage", Type: "string", Description: "Storage element to watch, defaults to the connection endpoint"},
				{Name: "discharge_threshold", Type: "param", Description: "kWh below which the discharge price applies"},
				{Name: "discharge_price", Type: "param", Description: "Price per kWh-hour below the discharge threshold"},
				{Name: "charge_threshold", Type: "param", Description: "kWh above which the charge price applies"},
				{Name: "charge_price", Type: "param", Description: "Price per kWh-hour above the charge threshold"},
			},
		},
		{
			Kind:        KindBatteryBalance,
			Description: "Moves energy between adjacent battery partitions so they fill bottom-up and drain top-down.",
			Parameters: []Parameter{
				{Name: "ordering_cost", Type: "float", Description: "Tie-break preference per kWh-hour held in the upper partition, kept out of the objective", Default: DefaultOrderingCost},
			},
		},
	}
}
