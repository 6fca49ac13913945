package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"energy-network/internal/api/models"
	"energy-network/internal/data"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// respondGridStatusError maps Grid Status failures onto the caller: bad or
// missing keys become 401, rate limits pass through as 429.
func respondGridStatusError(c *gin.Context, err error) bool {
	var gsErr *data.GridStatusError
	if !errors.As(err, &gsErr) {
		return false
	}
	statusCode := http.StatusBadRequest
	switch gsErr.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		statusCode = http.StatusUnauthorized
	case http.StatusTooManyRequests:
		statusCode = http.StatusTooManyRequests
	}
	c.JSON(statusCode, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    gsErr.Code,
			Message: gsErr.Message,
			Details: map[string]interface{}{
				"status_code": gsErr.StatusCode,
				"retry_after": gsErr.RetryAfter,
			},
		},
	})
	return true
}

// validateAPIKey performs basic validation on the API key
func validateAPIKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("API key cannot be empty or whitespace")
	}
	if len(apiKey) < 10 {
		return fmt.Errorf("API key appears to be invalid (too short)")
	}
	return nil
}

// requestAPIKey prefers the X-API-Key header, then the body value, then the
// server key.
func requestAPIKey(c *gin.Context, body, server string) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if body != "" {
		return body
	}
	return server
}
