package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/basket-service/internal/database"
	"github.com/kosarica/basket-service/internal/optimizer"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	CircuitBreaker string `json:"circuitBreaker,omitempty"`
}

var priceSourceBreaker *optimizer.CircuitBreaker

// InitHealth registers the price source circuit breaker for reporting.
func InitHealth(breaker *optimizer.CircuitBreaker) {
	priceSourceBreaker = breaker
}

// HealthCheck handles the health check endpoint
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /internal/health [get]
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}

	if priceSourceBreaker != nil {
		state := priceSourceBreaker.State()
		response.CircuitBreaker = state.String()
		if state != optimizer.CircuitClosed {
			response.Status = "degraded"
		}
	}

	// Check database connection
	if database.Pool() != nil {
		err := database.Status(c.Request.Context())
		if err != nil {
			response.Status = "error"
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
	} else {
		response.Database = "not configured"
	}

	c.JSON(http.StatusOK, response)
}
