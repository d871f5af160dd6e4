// Package api wires the HTTP surface: health plus the versioned signal
// and indicator endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fxviews/fx-views-go/internal/database"
	"github.com/fxviews/fx-views-go/internal/handlers"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes mounts all endpoints on the router.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, signals *handlers.SignalHandler, indicators *handlers.IndicatorHandler) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		signals.RegisterRoutes(v1)
		indicators.RegisterRoutes(v1)
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
