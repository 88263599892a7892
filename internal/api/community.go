package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/analytics"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"github.com/lalith-99/agora/internal/models"
	"go.uber.org/zap"
)

type CommunityHandler struct {
	lifecycle  *engine.Lifecycle
	aggregator *analytics.Aggregator
	logger     *zap.Logger
}

func NewCommunityHandler(lifecycle *engine.Lifecycle, aggregator *analytics.Aggregator, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{lifecycle: lifecycle, aggregator: aggregator, logger: logger}
}

type createCommunityRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

// Create handles POST /v1/communities
func (h *CommunityHandler) Create(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	community, err := h.lifecycle.CreateCommunity(c.Request.Context(), middleware.GetIdentity(c), engine.CreateCommunityInput{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, community)
}

// Join handles POST /v1/communities/:id/members
func (h *CommunityHandler) Join(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}
	if err := h.lifecycle.JoinCommunity(c.Request.Context(), middleware.GetIdentity(c), communityID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analytics handles GET /v1/communities/:id/analytics
//
// Query params: period (daily|weekly|monthly), from/to (RFC3339). Defaults
// to the last 30 daily buckets.
func (h *CommunityHandler) Analytics(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}

	period := models.PeriodType(c.DefaultQuery("period", string(models.PeriodDaily)))

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' parameter"})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' parameter"})
			return
		}
	}

	buckets, err := h.aggregator.QueryBuckets(c.Request.Context(), communityID, period, from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

// LiveDashboard handles GET /v1/communities/:id/analytics/live
func (h *CommunityHandler) LiveDashboard(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}
	counts, err := h.aggregator.LiveCounts(c.Request.Context(), communityID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
