package models

import (
	"encoding/json"
	"time"

	"energy-network/internal/config"
)

// OptimizeRequest represents the request body for planning a dispatch
type OptimizeRequest struct {
	// Network names a YAML file in the network directory (without extension).
	Network string `json:"network,omitempty"`
	// Config is an inline network description. With Network set it is
	// merged over the stored file.
	Config json.RawMessage `json:"config,omitempty"`
	// At is the planning start; default: now
	At *time.Time `json:"at,omitempty"`
	// APIKey is a Grid Status API key for live price forecasts; default:
	// the server key, if any
	APIKey  string          `json:"api_key,omitempty"`
	Options OptimizeOptions `json:"options,omitempty"`
}

// OptimizeOptions contains optional response parameters
type OptimizeOptions struct {
	IncludeLedger bool `json:"include_ledger,omitempty"` // default: false
	IncludeResult bool `json:"include_result,omitempty"` // full per-element schedules
}

// HorizonRequest represents a request to preview the planned periods
type HorizonRequest struct {
	Horizon config.HorizonConfig `json:"horizon"`
	At      *time.Time           `json:"at,omitempty"`
}

// PriceRequest represents a query for a live price forecast
type PriceRequest struct {
	DatasetID  string    `form:"dataset_id" binding:"required"`
	LocationID string    `form:"location_id" binding:"required"`
	Start      time.Time `form:"start" binding:"required"`
	End        time.Time `form:"end" binding:"required"`
	Timezone   string    `form:"timezone,omitempty"`
}

// RankRequest represents a request to rank nodes
type RankRequest struct {
	DatasetID   string    `form:"dataset_id" binding:"required"`
	LocationIDs string    `form:"location_ids" binding:"required"` // comma-separated
	Start       time.Time `form:"start" binding:"required"`
	End         time.Time `form:"end" binding:"required"`
	Limit       int       `form:"limit,omitempty"` // default: 10
}
