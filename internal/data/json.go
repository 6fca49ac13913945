package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"energy-network/internal/timeseries"
)

func LoadGridStatusJSON(path string) (*GridStatusLMPResponse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp GridStatusLMPResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GroupByLocation splits a response into location-keyed slices.
func GroupByLocation(resp *GridStatusLMPResponse) map[string][]LMPInterval {
	out := map[string][]LMPInterval{}
	if resp == nil {
		return out
	}
	for _, it := range resp.Data {
		out[it.Location] = append(out[it.Location], it)
	}
	return out
}

// LoadForecast reads a forecast file. The file is either a JSON array of
// {"time", "value"} points or a saved Grid Status LMP response, in which case
// the prices of location are returned in $/kWh. An empty location is accepted
// when the response covers a single location.
func LoadForecast(path, location string) ([]timeseries.Point, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var points []timeseries.Point
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, fmt.Errorf("parse forecast points %s: %w", path, err)
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("%s: %w", path, timeseries.ErrNoData)
		}
		return timeseries.Sorted(points), nil
	}

	var resp GridStatusLMPResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse grid status response %s: %w", path, err)
	}
	intervals, err := selectLocation(&resp, location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return PricePoints(intervals), nil
}

func selectLocation(resp *GridStatusLMPResponse, location string) ([]LMPInterval, error) {
	groups := GroupByLocation(resp)
	if location != "" {
		rows, ok := groups[location]
		if !ok {
			return nil, fmt.Errorf("location %q not found: %w", location, timeseries.ErrNoData)
		}
		return rows, nil
	}
	switch len(groups) {
	case 0:
		return nil, timeseries.ErrNoData
	case 1:
		return resp.Data, nil
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("response covers locations %v; pick one", names)
}
