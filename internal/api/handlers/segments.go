package handlers

import (
	"net/http"
	"time"

	"energy-network/internal/api/models"
	"energy-network/internal/horizon"
	"energy-network/internal/lp"
	"energy-network/internal/segment"

	"github.com/gin-gonic/gin"
)

// ListSegments handles GET /api/v1/segments
func ListSegments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"segments": segment.Catalog(),
		"backends": lp.BackendNames(),
	})
}

// PlanHorizon handles POST /api/v1/horizon. Unset fields take the planner
// defaults.
func PlanHorizon(c *gin.Context) {
	var req models.HorizonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}
	plan, err := horizon.Build(at, req.Horizon.Planner())
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_HORIZON", err.Error())
		return
	}

	bounds := plan.Grid.Boundaries()
	periods := make([]models.PeriodInfo, plan.Grid.Len())
	for i, d := range plan.Grid.Durations {
		periods[i] = models.PeriodInfo{
			Start:    bounds[i],
			End:      bounds[i+1],
			Duration: d.String(),
		}
	}
	c.JSON(http.StatusOK, models.HorizonResponse{
		Start:   plan.Grid.Start,
		End:     plan.Grid.End(),
		Counts:  plan.Counts,
		Periods: periods,
	})
}
