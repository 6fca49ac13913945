package handlers

import (
	"net/http"
	"strings"

	"energy-network/internal/analysis"
	"energy-network/internal/api/models"
	"energy-network/internal/data"

	"github.com/gin-gonic/gin"
)

// PriceHandler serves live price forecasts from Grid Status
type PriceHandler struct {
	apiKey  string
	baseURL string
}

// NewPriceHandler creates a handler using apiKey when requests carry none
func NewPriceHandler(apiKey, baseURL string) *PriceHandler {
	return &PriceHandler{apiKey: apiKey, baseURL: baseURL}
}

// ListDatasets handles GET /api/v1/datasets
func ListDatasets(c *gin.Context) {
	datasets := []models.DatasetInfo{
		{
			ID:         "caiso_lmp_real_time_5_min",
			Name:       "CAISO LMP Real-Time 5-Min",
			Market:     "CAISO",
			Resolution: "5min",
		},
		{
			ID:         "caiso_lmp_day_ahead_hourly",
			Name:       "CAISO LMP Day-Ahead Hourly",
			Market:     "CAISO",
			Resolution: "1h",
		},
		{
			ID:         "ercot_spp_real_time_15_min",
			Name:       "ERCOT SPP Real-Time 15-Min",
			Market:     "ERCOT",
			Resolution: "15min",
		},
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

// GetPrices handles GET /api/v1/prices
func (h *PriceHandler) GetPrices(c *gin.Context) {
	var req models.PriceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	key := requestAPIKey(c, "", h.apiKey)
	if err := validateAPIKey(key); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_API_KEY", err.Error())
		return
	}

	client := data.NewGridStatusClient(key, h.baseURL)
	points, err := client.PriceForecast(c.Request.Context(), data.QueryLocationParams{
		DatasetID:  req.DatasetID,
		LocationID: req.LocationID,
		StartTime:  req.Start,
		EndTime:    req.End,
		Timezone:   req.Timezone,
	})
	if err != nil {
		if respondGridStatusError(c, err) {
			return
		}
		respondError(c, http.StatusBadRequest, "DATA_FETCH_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, models.PriceResponse{
		DatasetID:  req.DatasetID,
		LocationID: req.LocationID,
		Points:     points,
	})
}

// RankNodes handles GET /api/v1/rank
func (h *PriceHandler) RankNodes(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	key := requestAPIKey(c, "", h.apiKey)
	if err := validateAPIKey(key); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_API_KEY", err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	client := data.NewGridStatusClient(key, h.baseURL)
	byLoc := map[string][]data.LMPInterval{}
	for _, loc := range strings.Split(req.LocationIDs, ",") {
		if loc = strings.TrimSpace(loc); loc == "" {
			continue
		}
		resp, err := client.QueryLocation(c.Request.Context(), data.QueryLocationParams{
			DatasetID:  req.DatasetID,
			LocationID: loc,
			StartTime:  req.Start,
			EndTime:    req.End,
		})
		if err != nil {
			if respondGridStatusError(c, err) {
				return
			}
			respondError(c, http.StatusBadRequest, "DATA_FETCH_ERROR", err.Error())
			return
		}
		byLoc[loc] = resp.Data
	}

	ranked, failed := analysis.RankLocations(byLoc)
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}
	skipped := make(map[string]string, len(failed))
	for loc, err := range failed {
		skipped[loc] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{"ranked": ranked, "skipped": skipped})
}
