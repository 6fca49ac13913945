// Package api exposes the planner over HTTP.
package api

import (
	"os"
	"strings"

	"energy-network/internal/api/handlers"
	"energy-network/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Options configures the router.
type Options struct {
	NetworkDir string
	// APIKey is the server's Grid Status key; requests may bring their own.
	APIKey        string
	GridStatusURL string
	// StaticDir holds a built web client; skipped when it does not exist.
	StaticDir string
	Metrics   *middleware.Metrics
}

// NewRouter wires middleware and routes.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
		router.GET("/metrics", opts.Metrics.Handler())
	}

	optimizeHandler := handlers.NewOptimizeHandler(opts.NetworkDir, opts.APIKey)
	optimizeHandler.BaseURL = opts.GridStatusURL
	optimizeHandler.Metrics = opts.Metrics
	networkHandler := handlers.NewNetworkHandler(opts.NetworkDir)
	priceHandler := handlers.NewPriceHandler(opts.APIKey, opts.GridStatusURL)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/optimize", optimizeHandler.Optimize)
		api.GET("/optimize/:id", optimizeHandler.GetResult)
		api.GET("/optimize/:id/ledger", optimizeHandler.GetLedger)
		api.POST("/horizon", handlers.PlanHorizon)

		api.GET("/networks", networkHandler.ListNetworks)
		api.GET("/networks/:id", networkHandler.GetNetwork)
		api.GET("/segments", handlers.ListSegments)

		api.GET("/datasets", handlers.ListDatasets)
		api.GET("/prices", priceHandler.GetPrices)
		api.GET("/rank", priceHandler.RankNodes)
	}

	if opts.StaticDir != "" {
		serveStatic(router, opts.StaticDir)
	}
	return router
}

// serveStatic serves a single page app, answering unknown non-API paths
// with index.html.
func serveStatic(router *gin.Engine, dir string) {
	if _, err := os.Stat(dir); err != nil {
		log.Info().Str("dir", dir).Msg("static directory not found, skipping static file serving")
		return
	}
	router.Static("/assets", dir+"/assets")
	router.StaticFile("/favicon.ico", dir+"/favicon.ico")
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(404, gin.H{"error": "Not found"})
			return
		}
		c.File(dir + "/index.html")
	})
	log.Info().Str("dir", dir).Msg("serving static files")
}
