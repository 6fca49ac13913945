package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"energy-network/internal/api/models"
	"energy-network/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errNetworkNotFound = errors.New("network not found")

// NetworkDir returns NETWORK_DIR, or examples/ under the working directory,
// as an absolute path.
func NetworkDir() string {
	dir := os.Getenv("NETWORK_DIR")
	if dir == "" {
		dir = "examples"
		if wd, err := os.Getwd(); err == nil {
			dir = filepath.Join(wd, "examples")
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir
}

// networkPath resolves a network ID to its YAML file. IDs are bare file
// names; anything that could leave the directory is rejected.
func networkPath(dir, id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", errNetworkNotFound
	}
	path := filepath.Join(dir, id+".yaml")
	if _, err := os.Stat(path); err != nil {
		return "", errNetworkNotFound
	}
	return path, nil
}

// NetworkHandler serves the stored network descriptions
type NetworkHandler struct {
	dir    string
	logger zerolog.Logger
}

// NewNetworkHandler creates a handler over dir
func NewNetworkHandler(dir string) *NetworkHandler {
	logger := log.With().Str("component", "networks").Logger()
	logger.Info().Str("dir", dir).Msg("using network directory")
	return &NetworkHandler{dir: dir, logger: logger}
}

// ListNetworks handles GET /api/v1/networks
func (h *NetworkHandler) ListNetworks(c *gin.Context) {
	networks := []models.NetworkInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.logger.Warn().Err(err).Str("dir", h.dir).Msg("failed to read network directory")
		c.JSON(http.StatusOK, gin.H{"networks": networks})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		info, err := loadNetworkInfo(path)
		if err != nil {
			h.logger.Debug().Err(err).Str("file", path).Msg("skipping network file")
			continue
		}
		networks = append(networks, *info)
	}
	h.logger.Debug().Int("count", len(networks)).Msg("listed networks")
	c.JSON(http.StatusOK, gin.H{"networks": networks})
}

// GetNetwork handles GET /api/v1/networks/:id
func (h *NetworkHandler) GetNetwork(c *gin.Context) {
	path, err := networkPath(h.dir, c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "NETWORK_NOT_FOUND", err.Error())
		return
	}
	cfg, err := config.LoadUnchecked(path)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_CONFIG", err.Error())
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func loadNetworkInfo(path string) (*models.NetworkInfo, error) {
	cfg, err := config.LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	// Battery files parse as configs with nothing in them.
	if len(cfg.Elements) == 0 && len(cfg.Batteries) == 0 {
		return nil, errors.New("no elements")
	}
	forecasts := make([]string, 0, len(cfg.Forecasts))
	for name := range cfg.Forecasts {
		forecasts = append(forecasts, name)
	}
	sort.Strings(forecasts)
	return &models.NetworkInfo{
		ID:          strings.TrimSuffix(filepath.Base(path), ".yaml"),
		File:        path,
		Elements:    len(cfg.Elements),
		Batteries:   len(cfg.Batteries),
		Connections: len(cfg.Connections),
		Forecasts:   forecasts,
	}, nil
}
