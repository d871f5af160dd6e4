package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fxviews/fx-views-go/internal/services"
)

// IndicatorHandler serves the macro-indicator dashboard summaries.
type IndicatorHandler struct {
	indicators *services.IndicatorService
}

func NewIndicatorHandler(indicators *services.IndicatorService) *IndicatorHandler {
	return &IndicatorHandler{indicators: indicators}
}

// RegisterRoutes mounts the indicator endpoints on a router group.
func (h *IndicatorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/indicators", h.ListIndicators)
	r.GET("/indicators/:name/summary", h.GetIndicatorSummary)
}

// ListIndicators handles GET /api/v1/indicators.
func (h *IndicatorHandler) ListIndicators(c *gin.Context) {
	names := h.indicators.Names()
	c.JSON(http.StatusOK, gin.H{"indicators": names, "count": len(names)})
}

// GetIndicatorSummary handles GET /api/v1/indicators/:name/summary.
func (h *IndicatorHandler) GetIndicatorSummary(c *gin.Context) {
	summary, err := h.indicators.Summary(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
