package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"github.com/lalith-99/agora/internal/models"
	"go.uber.org/zap"
)

type VoteHandler struct {
	votes  *engine.VoteProcessor
	logger *zap.Logger
}

func NewVoteHandler(votes *engine.VoteProcessor, logger *zap.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

type castVoteRequest struct {
	VoteType string `json:"vote_type" binding:"required"`
}

// Cast handles POST /v1/{discussions,replies}/:id/votes
//
// The response is the authoritative counter state after the transaction;
// clients that applied an optimistic local delta reconcile against it.
func (h *VoteHandler) Cast(item models.ItemType) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
			return
		}
		var req castVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		actor := middleware.GetIdentity(c)
		result, err := h.votes.CastVote(c.Request.Context(), item, itemID, actor.UserID, models.VoteType(req.VoteType))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
