package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"go.uber.org/zap"
)

type ReplyHandler struct {
	lifecycle *engine.Lifecycle
	logger    *zap.Logger
}

func NewReplyHandler(lifecycle *engine.Lifecycle, logger *zap.Logger) *ReplyHandler {
	return &ReplyHandler{lifecycle: lifecycle, logger: logger}
}

type createReplyRequest struct {
	Content       string     `json:"content" binding:"required"`
	ParentReplyID *uuid.UUID `json:"parent_reply_id"`
}

// Create handles POST /v1/discussions/:id/replies
func (h *ReplyHandler) Create(c *gin.Context) {
	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}
	var req createReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.lifecycle.CreateReply(c.Request.Context(), middleware.GetIdentity(c), engine.CreateReplyInput{
		DiscussionID:  discussionID,
		Content:       req.Content,
		ParentReplyID: req.ParentReplyID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// List handles GET /v1/discussions/:id/replies
//
// ?tree=1 returns the reconstructed forest instead of the flat
// creation-ordered list. The tree is built at the serving edge from the
// same flat set, so both views are consistent.
func (h *ReplyHandler) List(c *gin.Context) {
	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion ID"})
		return
	}

	if c.Query("tree") == "1" {
		forest, err := h.lifecycle.GetReplyTree(c.Request.Context(), discussionID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replies": forest})
		return
	}

	replies, err := h.lifecycle.ListReplies(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

type updateReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

// Update handles PATCH /v1/replies/:id
func (h *ReplyHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply ID"})
		return
	}
	var req updateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.lifecycle.UpdateReply(c.Request.Context(), middleware.GetIdentity(c), id, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /v1/replies/:id (soft delete).
func (h *ReplyHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply ID"})
		return
	}
	if err := h.lifecycle.DeleteReply(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
