package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/realtime"
	"github.com/lalith-99/agora/internal/repository"
	"go.uber.org/zap"
)

type DiscussionHandler struct {
	lifecycle *engine.Lifecycle
	hub       *realtime.Hub
	logger    *zap.Logger
}

func NewDiscussionHandler(lifecycle *engine.Lifecycle, hub *realtime.Hub, logger *zap.Logger) *DiscussionHandler {
	return &DiscussionHandler{lifecycle: lifecycle, hub: hub, logger: logger}
}

type createDiscussionRequest struct {
	CommunityID uuid.UUID `json:"community_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Content     string    `json:"content" binding:"required"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
}

// Create handles POST /v1/discussions
func (h *DiscussionHandler) Create(c *gin.Context) {
	var req createDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.DiscussionCategory(req.Category)
	if category == "" {
		category = models.CategoryGeneral
	}
	d, err := h.lifecycle.CreateDiscussion(c.Request.Context(), middleware.GetIdentity(c), engine.CreateDiscussionInput{
		CommunityID: req.CommunityID,
		Title:       req.Title,
		Content:     req.Content,
		Category:    category,
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// Get handles GET /v1/discussions/:id
func (h *DiscussionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}
	d, err := h.lifecycle.GetDiscussion(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// List handles GET /v1/communities/:id/discussions
//
// Query params: sort (created_at|vote_score|reply_count), limit, cursor
// (opaque, from a previous page), category, status, tag. Listing goes
// through the hub's LoadMore so live subscriptions and one-shot pages
// share the exact same cursor semantics.
func (h *DiscussionHandler) List(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}

	filter := repository.DiscussionFilter{
		CommunityID: communityID,
		Category:    models.DiscussionCategory(c.Query("category")),
		Status:      models.Status(c.Query("status")),
		Tag:         c.Query("tag"),
	}

	page, err := h.hub.LoadMore(c.Request.Context(), filter,
		repository.SortKey(c.Query("sort")), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListPinned handles GET /v1/communities/:id/discussions/pinned
func (h *DiscussionHandler) ListPinned(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}
	pinned, err := h.lifecycle.ListPinned(c.Request.Context(), communityID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pinned)
}

type updateDiscussionRequest struct {
	Title             *string    `json:"title"`
	Content           *string    `json:"content"`
	Tags              []string   `json:"tags"`
	IfUnmodifiedSince *time.Time `json:"if_unmodified_since"`
}

// Update handles PATCH /v1/discussions/:id
func (h *DiscussionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}
	var req updateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.lifecycle.UpdateDiscussion(c.Request.Context(), middleware.GetIdentity(c), id, engine.UpdateDiscussionInput{
		Title:             req.Title,
		Content:           req.Content,
		Tags:              req.Tags,
		IfUnmodifiedSince: req.IfUnmodifiedSince,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /v1/discussions/:id (soft delete).
func (h *DiscussionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}
	if err := h.lifecycle.DeleteDiscussion(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type flagRequest struct {
	Value bool `json:"value"`
}

// SetFlag handles POST /v1/discussions/:id/{pin,lock,feature}
func (h *DiscussionHandler) SetFlag(flag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
			return
		}
		var req flagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		actor := middleware.GetIdentity(c)
		var d *models.Discussion
		switch flag {
		case "pin":
			d, err = h.lifecycle.SetPinned(c.Request.Context(), actor, id, req.Value)
		case "lock":
			d, err = h.lifecycle.SetLocked(c.Request.Context(), actor, id, req.Value)
		case "feature":
			d, err = h.lifecycle.SetFeatured(c.Request.Context(), actor, id, req.Value)
		}
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// Transition handles POST /v1/discussions/:id/status
func (h *DiscussionHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.lifecycle.Transition(c.Request.Context(), middleware.GetIdentity(c), id, models.Status(req.Status))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
