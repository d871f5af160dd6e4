// Package handlers exposes the latest signal outputs over HTTP. The read
// path serves from cache first and falls back to the database.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/cache"
	"github.com/fxviews/fx-views-go/internal/database"
	"github.com/fxviews/fx-views-go/internal/models"
)

// DecisionReader is the persistence read surface for decisions.
type DecisionReader interface {
	LatestDecision(ctx context.Context) (models.DecisionRecord, error)
	DecisionHistory(ctx context.Context, limit int) ([]models.DecisionRecord, error)
}

// SignalHandler serves the fused stance and the component reads.
type SignalHandler struct {
	repo   DecisionReader
	cache  *cache.DecisionCache
	logger *logrus.Logger
}

func NewSignalHandler(repo DecisionReader, decisionCache *cache.DecisionCache, logger *logrus.Logger) *SignalHandler {
	return &SignalHandler{repo: repo, cache: decisionCache, logger: logger}
}

// RegisterRoutes mounts the signal endpoints on a router group.
func (h *SignalHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/decision/latest", h.GetLatestDecision)
	r.GET("/decision/history", h.GetDecisionHistory)
	r.GET("/technical/latest", h.GetLatestTechnical)
	r.GET("/positioning/latest", h.GetLatestPositioning)
}

// GetLatestDecision handles GET /api/v1/decision/latest. When no valid
// decision exists, the response is an explicit unavailable state rather
// than a fabricated default stance.
func (h *SignalHandler) GetLatestDecision(c *gin.Context) {
	if record, err := h.cache.GetDecision(c.Request.Context()); err == nil {
		c.JSON(http.StatusOK, record)
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.WithError(err).Warn("Decision cache read failed, falling back to database")
	}

	record, err := h.repo.LatestDecision(c.Request.Context())
	if err != nil {
		if errors.Is(err, database.ErrNoDecision) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "signal unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load decision", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetDecisionHistory handles GET /api/v1/decision/history?limit=N.
func (h *SignalHandler) GetDecisionHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1,500]"})
			return
		}
		limit = parsed
	}

	records, err := h.repo.DecisionHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load decision history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records, "count": len(records)})
}

// GetLatestTechnical handles GET /api/v1/technical/latest.
func (h *SignalHandler) GetLatestTechnical(c *gin.Context) {
	score, err := h.cache.GetTechnical(c.Request.Context())
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "signal unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load technical score", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, score)
}

// GetLatestPositioning handles GET /api/v1/positioning/latest.
func (h *SignalHandler) GetLatestPositioning(c *gin.Context) {
	snapshot, err := h.cache.GetPositioning(c.Request.Context())
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "signal unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load positioning snapshot", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
