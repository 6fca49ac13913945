package models

import (
	"time"

	"energy-network/internal/dispatch"
	"energy-network/internal/lp"
	"energy-network/internal/network"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"
)

// OptimizeResponse represents the result of a planned dispatch
type OptimizeResponse struct {
	ID        string                    `json:"id"`
	Status    lp.Status                 `json:"status"`
	Objective float64                   `json:"objective"`
	Error     string                    `json:"error,omitempty"`
	Start     time.Time                 `json:"start"`
	End       time.Time                 `json:"end"`
	Periods   int                       `json:"periods"`
	ElapsedMS int64                     `json:"elapsed_ms"`
	Costs     map[string]float64        `json:"costs,omitempty"`
	Storage   []dispatch.StorageSummary `json:"storage,omitempty"`
	Ledger    []dispatch.LedgerRow      `json:"ledger,omitempty"`
	Result    *network.Result           `json:"result,omitempty"`
}

// PeriodInfo is one planned period
type PeriodInfo struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
}

// HorizonResponse lists the planned periods and how many each tier produced
type HorizonResponse struct {
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Counts  []int        `json:"counts"`
	Periods []PeriodInfo `json:"periods"`
}

// NetworkInfo describes a stored network file
type NetworkInfo struct {
	ID          string   `json:"id"`
	File        string   `json:"file"`
	Elements    int      `json:"elements"`
	Batteries   int      `json:"batteries"`
	Connections int      `json:"connections"`
	Forecasts   []string `json:"forecasts,omitempty"`
}

// SegmentInfo documents one segment kind
type SegmentInfo = segment.Description

// DatasetInfo represents a Grid Status dataset
type DatasetInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Market     string `json:"market"`
	Resolution string `json:"resolution"`
}

// PriceResponse is a live price forecast in $/kWh
type PriceResponse struct {
	DatasetID  string             `json:"dataset_id"`
	LocationID string             `json:"location_id"`
	Points     []timeseries.Point `json:"points"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
