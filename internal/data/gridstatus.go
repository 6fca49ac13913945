package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"energy-network/internal/timeseries"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultGridStatusURL = "https://api.gridstatus.io"

// GridStatusClient fetches LMP prices from the Grid Status API.
type GridStatusClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	// Cache is consulted before every request; nil disables caching.
	Cache  *ResponseCache
	Logger zerolog.Logger
}

// NewGridStatusClient returns a client for baseURL, or the public API when
// baseURL is empty. The response cache is taken from the environment.
func NewGridStatusClient(apiKey, baseURL string) *GridStatusClient {
	if baseURL == "" {
		baseURL = DefaultGridStatusURL
	}
	return &GridStatusClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Cache:   CacheFromEnv(),
		Logger:  log.With().Str("component", "gridstatus").Logger(),
	}
}

// QueryLocationParams selects one location of one dataset over a time range.
type QueryLocationParams struct {
	DatasetID  string    // e.g. "caiso_lmp_real_time_5_min"
	LocationID string    // e.g. "TH_NP15_GEN-APND"
	StartTime  time.Time
	EndTime    time.Time
	Timezone   string // "market" when empty
}

func (p QueryLocationParams) validate() error {
	switch {
	case p.DatasetID == "":
		return errors.New("dataset_id is required")
	case p.LocationID == "":
		return errors.New("location_id is required")
	case p.StartTime.IsZero() || p.EndTime.IsZero():
		return errors.New("start_time and end_time are required")
	case !p.StartTime.Before(p.EndTime):
		return errors.New("start_time must be before end_time")
	}
	return nil
}

// GridStatusError is an error reported by, or about access to, the API.
type GridStatusError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *GridStatusError) Error() string { return e.Message }

// QueryLocation fetches the LMP rows of one location.
func (c *GridStatusClient) QueryLocation(ctx context.Context, params QueryLocationParams) (*GridStatusLMPResponse, error) {
	if err := c.validateAPIKey(); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	logger := c.Logger.With().Str("dataset", params.DatasetID).Str("location", params.LocationID).Logger()

	key := CacheKey(params)
	if cached, ok := c.Cache.Get(key); ok {
		logger.Debug().Int("intervals", len(cached.Data)).Msg("cache hit")
		return cached, nil
	}

	u, err := url.Parse(c.BaseURL + fmt.Sprintf("/v1/datasets/%s/query/location/%s",
		url.PathEscape(params.DatasetID), url.PathEscape(params.LocationID)))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("start_time", params.StartTime.UTC().Format(time.RFC3339))
	q.Set("end_time", params.EndTime.UTC().Format(time.RFC3339))
	tz := params.Timezone
	if tz == "" {
		tz = "market"
	}
	q.Set("timezone", tz)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.Client.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("response")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &GridStatusError{StatusCode: resp.StatusCode, Code: "UNAUTHORIZED", Message: "Unauthorized: Invalid API key"}
	case http.StatusForbidden:
		return nil, &GridStatusError{StatusCode: resp.StatusCode, Code: "INVALID_API_KEY", Message: "Invalid API key or insufficient permissions"}
	case http.StatusTooManyRequests:
		retry := resp.Header.Get("Retry-After")
		return nil, &GridStatusError{
			StatusCode: resp.StatusCode,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("Rate limit exceeded. Retry after: %s", retry),
			RetryAfter: retry,
		}
	default:
		return nil, &GridStatusError{
			StatusCode: resp.StatusCode,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d", resp.StatusCode),
		}
	}

	var result GridStatusLMPResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	logger.Debug().Int("intervals", len(result.Data)).Msg("received")
	c.Cache.Set(key, &result)
	return &result, nil
}

// PriceForecast returns the location's prices in $/kWh.
func (c *GridStatusClient) PriceForecast(ctx context.Context, params QueryLocationParams) ([]timeseries.Point, error) {
	resp, err := c.QueryLocation(ctx, params)
	if err != nil {
		return nil, err
	}
	intervals, err := selectLocation(resp, params.LocationID)
	if err != nil {
		return nil, err
	}
	return PricePoints(intervals), nil
}

func (c *GridStatusClient) validateAPIKey() error {
	if c.APIKey == "" {
		return &GridStatusError{Code: "MISSING_API_KEY", Message: "API key is required"}
	}
	if len(c.APIKey) < 10 {
		return &GridStatusError{Code: "INVALID_API_KEY_FORMAT", Message: "API key appears to be invalid (too short)"}
	}
	return nil
}
