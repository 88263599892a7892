package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/realtime"
	"github.com/lalith-99/agora/internal/repository"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers enforce same-origin for cookies, and we authenticate by
	// bearer token, so cross-origin upgrades are acceptable here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type SubscribeHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewSubscribeHandler(hub *realtime.Hub, logger *zap.Logger) *SubscribeHandler {
	return &SubscribeHandler{hub: hub, logger: logger}
}

// Stream handles GET /v1/communities/:id/subscribe (websocket upgrade).
//
// Query params: sort, page_size, category, status, tag, pinned=1 for the
// live pinned stream. Each message on the socket is one ordered Snapshot;
// the first arrives immediately with the current top page. Closing the
// socket (or the request context ending) unsubscribes and releases all
// per-consumer state.
func (h *SubscribeHandler) Stream(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community ID"})
		return
	}

	pageSize := 0
	if v := c.Query("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'page_size' parameter"})
			return
		}
	}

	req := realtime.SubscribeRequest{
		CommunityID: communityID,
		Sort:        repository.SortKey(c.Query("sort")),
		PageSize:    pageSize,
		PinnedOnly:  c.Query("pinned") == "1",
		Filter: repository.DiscussionFilter{
			Category: models.DiscussionCategory(c.Query("category")),
			Status:   models.Status(c.Query("status")),
			Tag:      c.Query("tag"),
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub, err := h.hub.Subscribe(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("subscribe failed", zap.Error(err))
		conn.Close()
		return
	}
	defer h.hub.Unsubscribe(sub)

	// Reader goroutine: we never expect client data, but reading is how
	// close frames and pongs are processed.
	go func() {
		defer conn.Close()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
