package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"energy-network/internal/api/middleware"
	"energy-network/internal/api/models"
	"energy-network/internal/data"
	"energy-network/internal/lp"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const tol = 1e-6

// flatNetwork draws a fixed 1 kW from the grid at 0.30 per kWh for four
// hourly periods.
const flatNetwork = `
horizon:
  tiers: [{duration: 1h}]
  total_steps: 4
  duration: 4h
elements:
  - {name: grid, kind: grid}
  - {name: house, kind: bus}
  - {name: load, kind: sink}
batteries:
  - {name: battery, bus: house, capacity: 10, thresholds: [2], max_charge: 5, max_discharge: 5}
connections:
  - name: import
    source: grid
    target: house
    segments:
      - {type: pricing, forward: 0.30}
  - name: demand
    source: house
    target: load
    segments:
      - {type: power_limit, max_forward: 1, max_reverse: 0, fixed: true}
`

const inlineNetwork = `{
  "horizon": {"tiers": [{"duration": "1h"}], "total_steps": 4, "duration": "4h"},
  "elements": [
    {"name": "grid", "kind": "grid"},
    {"name": "house", "kind": "bus"},
    {"name": "load", "kind": "sink"}
  ],
  "connections": [
    {"name": "import", "source": "grid", "target": "house",
     "segments": [{"type": "pricing", "forward": "@price"}]},
    {"name": "demand", "source": "house", "target": "load",
     "segments": [{"type": "power_limit", "max_forward": 2, "max_reverse": 0, "fixed": true}]}
  ],
  "forecasts": {"price": {"constant": 0.25}}
}`

var at = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type server struct {
	router  *gin.Engine
	metrics *middleware.Metrics
}

func newServer(t *testing.T, opts Options) *server {
	t.Helper()
	if opts.NetworkDir == "" {
		opts.NetworkDir = t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(opts.NetworkDir, "flat.yaml"), []byte(flatNetwork), 0o644))
	}
	opts.Metrics = middleware.NewMetrics()
	return &server{router: NewRouter(opts), metrics: opts.Metrics}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestOptimizeStoredNetwork(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/optimize", models.OptimizeRequest{
		Network: "flat",
		At:      &at,
		Options: models.OptimizeOptions{IncludeLedger: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.OptimizeResponse](t, w)
	assert.Equal(t, lp.StatusOptimal, resp.Status)
	assert.InDelta(t, 1.2, resp.Objective, tol)
	assert.InDelta(t, 1.2, resp.Costs["import"], tol)
	assert.Equal(t, 4, resp.Periods)
	assert.True(t, resp.Start.Equal(at))
	assert.True(t, resp.End.Equal(at.Add(4*time.Hour)))
	assert.Nil(t, resp.Result)
	// Two bands plus the battery total, four periods each.
	assert.Len(t, resp.Ledger, 12)

	w = s.do(t, http.MethodGet, "/api/v1/optimize/"+resp.ID+"/ledger?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, "index", rows[0][0])

	w = s.do(t, http.MethodGet, "/api/v1/optimize/"+resp.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[models.OptimizeResponse](t, w)
	require.NotNil(t, full.Result)
	assert.Contains(t, full.Result.Elements, "battery:lower")

	w = s.do(t, http.MethodGet, "/api/v1/optimize/missing/ledger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOptimizeInlineConfig(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/optimize", map[string]any{
		"config": json.RawMessage(inlineNetwork),
		"at":     at,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.OptimizeResponse](t, w)
	assert.InDelta(t, 0.25*2*4, resp.Objective, tol)
	assert.Empty(t, resp.Storage)
}

func TestOptimizeOverridesStoredNetwork(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/optimize", map[string]any{
		"network": "flat",
		"config":  json.RawMessage(`{"horizon": {"total_steps": 2, "duration": "2h"}}`),
		"at":      at,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.OptimizeResponse](t, w)
	assert.Equal(t, 2, resp.Periods)
	assert.InDelta(t, 0.6, resp.Objective, tol)
}

func TestOptimizeErrors(t *testing.T) {
	s := newServer(t, Options{})
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed", "not an object", http.StatusBadRequest, "INVALID_REQUEST"},
		{"nothing to run", map[string]any{}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"unknown network", map[string]any{"network": "nope"}, http.StatusNotFound, "NETWORK_NOT_FOUND"},
		{"path escape", map[string]any{"network": "../flat"}, http.StatusNotFound, "NETWORK_NOT_FOUND"},
		{"bad reference", map[string]any{"config": json.RawMessage(`{
			"elements": [{"name": "grid", "kind": "grid"}, {"name": "load", "kind": "sink"}],
			"connections": [{"name": "c", "source": "grid", "target": "load",
			  "segments": [{"type": "pricing", "forward": "@missing"}]}]}`)},
			http.StatusBadRequest, "INVALID_CONFIG"},
		{"isolated element", map[string]any{"config": json.RawMessage(`{
			"horizon": {"tiers": [{"duration": "1h"}], "total_steps": 2, "duration": "2h"},
			"elements": [{"name": "grid", "kind": "grid"}, {"name": "load", "kind": "sink"},
			  {"name": "lonely", "kind": "bus"}],
			"connections": [{"name": "c", "source": "grid", "target": "load"}]}`)},
			http.StatusUnprocessableEntity, "INVALID_NETWORK"},
		{"short api key", map[string]any{"network": "flat", "api_key": "short"},
			http.StatusBadRequest, "INVALID_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/optimize", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[models.ErrorResponse](t, w).Error.Code)
		})
	}
}

func TestOptimizeWithoutPriceSource(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/optimize", map[string]any{
		"network": "flat",
		"config": json.RawMessage(`{
			"forecasts": {"live": {"gridstatus": {"dataset": "caiso_lmp_real_time_5_min", "location": "NODE_A"}}},
			"connections": [
			  {"name": "import", "source": "grid", "target": "house", "segments": [{"type": "pricing", "forward": "@live"}]},
			  {"name": "demand", "source": "house", "target": "load",
			   "segments": [{"type": "power_limit", "max_forward": 1, "max_reverse": 0, "fixed": true}]}]}`),
		"at": at,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "FORECAST_ERROR", decode[models.ErrorResponse](t, w).Error.Code)
}

func TestListNetworks(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodGet, "/api/v1/networks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Networks []models.NetworkInfo `json:"networks"`
	}](t, w)
	require.Len(t, body.Networks, 1)
	assert.Equal(t, "flat", body.Networks[0].ID)
	assert.Equal(t, 3, body.Networks[0].Elements)
	assert.Equal(t, 1, body.Networks[0].Batteries)

	w = s.do(t, http.MethodGet, "/api/v1/networks/flat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"thresholds":[2]`)

	w = s.do(t, http.MethodGet, "/api/v1/networks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNetworksMissingDirectory(t *testing.T) {
	s := newServer(t, Options{NetworkDir: filepath.Join(t.TempDir(), "missing")})
	w := s.do(t, http.MethodGet, "/api/v1/networks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"networks": []}`, w.Body.String())
}

func TestListSegments(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodGet, "/api/v1/segments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Segments []models.SegmentInfo `json:"segments"`
		Backends []string             `json:"backends"`
	}](t, w)
	assert.Len(t, body.Segments, 7)
	assert.Contains(t, body.Backends, "simplex")
}

func TestPlanHorizon(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/horizon", map[string]any{"at": at})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.HorizonResponse](t, w)
	assert.Len(t, resp.Periods, 56)
	assert.True(t, resp.End.Equal(at.Add(48*time.Hour)))
	assert.Equal(t, "1m0s", resp.Periods[0].Duration)

	w = s.do(t, http.MethodPost, "/api/v1/horizon", map[string]any{
		"horizon": map[string]any{"tiers": []any{map[string]any{"duration": "1h"}}, "total_steps": 10, "duration": "2h"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_HORIZON", decode[models.ErrorResponse](t, w).Error.Code)
}

func TestPrices(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key-12345", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(data.GridStatusLMPResponse{
			StatusCode: 200,
			Data: []data.LMPInterval{{
				IntervalStartUTC: at,
				IntervalEndUTC:   at.Add(time.Hour),
				Location:         "NODE_A",
				LMP:              50,
			}},
		})
	}))
	defer upstream.Close()

	s := newServer(t, Options{GridStatusURL: upstream.URL})
	path := "/api/v1/prices?dataset_id=caiso_lmp_day_ahead_hourly&location_id=NODE_A" +
		"&start=2025-03-01T00:00:00Z&end=2025-03-01T01:00:00Z"

	w := s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_API_KEY", decode[models.ErrorResponse](t, w).Error.Code)

	w = s.do(t, http.MethodGet, path, nil, "X-API-Key", "test-key-12345")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.PriceResponse](t, w)
	require.NotEmpty(t, resp.Points)
	assert.InDelta(t, 0.05, resp.Points[0].Value, 1e-12)

	w = s.do(t, http.MethodGet, "/api/v1/prices?dataset_id=x", nil, "X-API-Key", "test-key-12345")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPricesUpstreamRateLimit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	s := newServer(t, Options{GridStatusURL: upstream.URL, APIKey: "server-key-12345"})
	w := s.do(t, http.MethodGet, "/api/v1/prices?dataset_id=d&location_id=NODE_A"+
		"&start=2025-03-01T00:00:00Z&end=2025-03-01T01:00:00Z", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode[models.ErrorResponse](t, w).Error.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodOptions, "/api/v1/optimize", nil,
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", http.MethodPost)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/v1/optimize", map[string]any{"network": "flat", "at": at})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `energy_network_optimizations_total{status="optimal"} 1`)
	assert.True(t, strings.Contains(body, `route="/api/v1/optimize"`))
}

func TestPanicRecovery(t *testing.T) {
	s := newServer(t, Options{})
	s.router.GET("/boom", func(c *gin.Context) { panic("boom") })
	w := s.do(t, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)
}

func TestRankNodes(t *testing.T) {
	lmps := map[string][]float64{"FLAT": {50, 50}, "SWINGY": {10, 200}}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := filepath.Base(r.URL.Path)
		resp := data.GridStatusLMPResponse{StatusCode: 200}
		for i, lmp := range lmps[loc] {
			start := at.Add(time.Duration(i) * time.Hour)
			resp.Data = append(resp.Data, data.LMPInterval{
				IntervalStartUTC: start,
				IntervalEndUTC:   start.Add(time.Hour),
				Location:         loc,
				LMP:              lmp,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer upstream.Close()

	s := newServer(t, Options{GridStatusURL: upstream.URL, APIKey: "server-key-12345"})
	w := s.do(t, http.MethodGet, "/api/v1/rank?dataset_id=d&location_ids=FLAT,SWINGY,NONE"+
		"&start=2025-03-01T00:00:00Z&end=2025-03-01T02:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[struct {
		Ranked []struct {
			Location       string  `json:"location"`
			ArbitrageValue float64 `json:"arbitrage_value"`
		} `json:"ranked"`
		Skipped map[string]string `json:"skipped"`
	}](t, w)
	require.Len(t, body.Ranked, 2)
	assert.Equal(t, "SWINGY", body.Ranked[0].Location)
	assert.Greater(t, body.Ranked[0].ArbitrageValue, body.Ranked[1].ArbitrageValue)
	assert.Contains(t, body.Skipped, "NONE")
}
