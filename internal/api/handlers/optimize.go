package handlers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"energy-network/internal/api/middleware"
	"energy-network/internal/api/models"
	"energy-network/internal/config"
	"energy-network/internal/data"
	"energy-network/internal/dispatch"
	"energy-network/internal/horizon"
	"energy-network/internal/network"
	"energy-network/internal/timeseries"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OptimizeHandler plans dispatches and keeps recent results for retrieval
type OptimizeHandler struct {
	networkDir string
	apiKey     string
	// BaseURL overrides the Grid Status endpoint; empty means the public API.
	BaseURL string
	Metrics *middleware.Metrics
	results *resultStore
	logger  zerolog.Logger
	now     func() time.Time
}

// NewOptimizeHandler creates a handler reading networks from networkDir.
// apiKey is the server's Grid Status key and may be empty.
func NewOptimizeHandler(networkDir, apiKey string) *OptimizeHandler {
	return &OptimizeHandler{
		networkDir: networkDir,
		apiKey:     apiKey,
		results:    newResultStore(DefaultStoredResults),
		logger:     log.With().Str("component", "optimize").Logger(),
		now:        time.Now,
	}
}

// Optimize handles POST /api/v1/optimize
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	var req models.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	cfg, err := h.loadConfig(req)
	if err != nil {
		if errors.Is(err, errNetworkNotFound) {
			respondError(c, http.StatusNotFound, "NETWORK_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	// Live prices are only fetched when some key is available.
	var prices config.PriceSource
	if key := requestAPIKey(c, req.APIKey, h.apiKey); key != "" {
		if err := validateAPIKey(key); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_API_KEY", err.Error())
			return
		}
		prices = data.NewGridStatusClient(key, h.BaseURL)
	}

	at := h.now()
	if req.At != nil {
		at = *req.At
	}
	engine := dispatch.New(prices, h.logger)
	result, err := engine.Run(c.Request.Context(), cfg, at)
	if err != nil {
		h.respondRunError(c, err)
		return
	}
	h.Metrics.ObserveSolve(result.Network.Status, result.Elapsed)
	h.results.put(result)

	c.JSON(http.StatusOK, buildResponse(result, req.Options))
}

// GetResult handles GET /api/v1/optimize/:id
func (h *OptimizeHandler) GetResult(c *gin.Context) {
	result, ok := h.results.get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "RESULT_NOT_FOUND", "no stored result with this id")
		return
	}
	c.JSON(http.StatusOK, buildResponse(result, models.OptimizeOptions{IncludeLedger: true, IncludeResult: true}))
}

// GetLedger handles GET /api/v1/optimize/:id/ledger. ?format=csv returns
// the CSV the command line tool writes.
func (h *OptimizeHandler) GetLedger(c *gin.Context) {
	id := c.Param("id")
	result, ok := h.results.get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "RESULT_NOT_FOUND", "no stored result with this id")
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="`+id+`.csv"`)
		c.Status(http.StatusOK)
		if err := dispatch.WriteLedger(c.Writer, result.Ledger); err != nil {
			_ = c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "ledger": result.Ledger})
}

// loadConfig reads the named network and overlays any inline config.
func (h *OptimizeHandler) loadConfig(req models.OptimizeRequest) (*config.Config, error) {
	var base *config.Config
	if req.Network != "" {
		path, err := networkPath(h.networkDir, req.Network)
		if err != nil {
			return nil, err
		}
		if base, err = config.LoadUnchecked(path); err != nil {
			return nil, err
		}
	}
	if len(req.Config) == 0 {
		if base == nil {
			return nil, errors.New("either network or config is required")
		}
		return base, nil
	}
	// JSON is YAML, so the inline config goes through the file parser and
	// may reference battery files next to the stored networks.
	override, err := config.Parse(req.Config, h.networkDir)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return override, nil
	}
	return config.Merge(base, override), nil
}

func (h *OptimizeHandler) respondRunError(c *gin.Context, err error) {
	if respondGridStatusError(c, err) {
		return
	}
	var verrs network.ValidationErrors
	var verr *network.ValidationError
	switch {
	case errors.As(err, &verrs):
		details := make([]map[string]string, len(verrs))
		for i, e := range verrs {
			details[i] = map[string]string{"kind": string(e.Kind), "name": e.Name, "message": e.Error()}
		}
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_NETWORK",
				Message: err.Error(),
				Details: map[string]interface{}{"errors": details},
			},
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_NETWORK",
				Message: err.Error(),
				Details: map[string]interface{}{"kind": string(verr.Kind), "name": verr.Name},
			},
		})
	case errors.Is(err, horizon.ErrInvalidTiers):
		respondError(c, http.StatusBadRequest, "INVALID_HORIZON", err.Error())
	case errors.Is(err, timeseries.ErrNoData),
		errors.Is(err, config.ErrNoPriceSource),
		errors.Is(err, config.ErrForecastCycle),
		errors.Is(err, config.ErrUnknownForecast),
		errors.Is(err, os.ErrNotExist):
		respondError(c, http.StatusBadRequest, "FORECAST_ERROR", err.Error())
	default:
		h.logger.Error().Err(err).Msg("optimization failed")
		respondError(c, http.StatusInternalServerError, "OPTIMIZE_ERROR", err.Error())
	}
}

func buildResponse(result *dispatch.Result, opts models.OptimizeOptions) models.OptimizeResponse {
	res := result.Network
	response := models.OptimizeResponse{
		ID:        result.ID,
		Status:    res.Status,
		Objective: res.Objective,
		Error:     res.Error,
		Start:     result.Plan.Grid.Start,
		End:       result.Plan.Grid.End(),
		Periods:   result.Plan.Grid.Len(),
		ElapsedMS: result.Elapsed.Milliseconds(),
		Costs:     res.Costs,
		Storage:   dispatch.Summarize(result.Ledger),
	}
	if opts.IncludeLedger {
		response.Ledger = result.Ledger
	}
	if opts.IncludeResult {
		response.Result = res
	}
	return response
}
