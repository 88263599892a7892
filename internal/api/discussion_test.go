package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/auth"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/realtime"
	"github.com/lalith-99/agora/internal/repository/memory"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// newTestRouter wires the discussion routes over the memory backend, the way
// main does over postgres.
func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	logger := zap.NewNop()

	lifecycle := engine.NewLifecycle(
		store.Communities(), store.Discussions(), store.Replies(),
		store, nil, nil, nil, logger,
	)
	hub := realtime.NewHub(store.Discussions(), logger)
	votes := engine.NewVoteProcessor(store.Votes(), nil, nil, hub, logger)

	communityHandler := NewCommunityHandler(lifecycle, nil, logger)
	discussionHandler := NewDiscussionHandler(lifecycle, hub, logger)
	replyHandler := NewReplyHandler(lifecycle, logger)
	voteHandler := NewVoteHandler(votes, logger)

	srv := gin.New()
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testSecret))
	v1.POST("/communities", communityHandler.Create)
	v1.GET("/communities/:id/discussions", discussionHandler.List)
	v1.POST("/discussions", discussionHandler.Create)
	v1.GET("/discussions/:id", discussionHandler.Get)
	v1.POST("/discussions/:id/votes", voteHandler.Cast(models.ItemDiscussion))
	v1.POST("/discussions/:id/replies", replyHandler.Create)
	v1.GET("/discussions/:id/replies", replyHandler.List)
	return srv, store
}

func bearerFor(t *testing.T, userID uuid.UUID, name string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, name, "", "", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, srv *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestRouter(t)
	w := doJSON(t, srv, http.MethodGet, "/v1/discussions/"+uuid.NewString(), "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestDiscussionLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestRouter(t)
	owner := uuid.New()
	bearer := bearerFor(t, owner, "owner")

	w := doJSON(t, srv, http.MethodPost, "/v1/communities", bearer, gin.H{"name": "Gophers"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create community: status = %d body=%s", w.Code, w.Body.String())
	}
	var community models.Community
	if err := json.Unmarshal(w.Body.Bytes(), &community); err != nil {
		t.Fatalf("decode community: %v", err)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/discussions", bearer, gin.H{
		"community_id": community.ID,
		"title":        "Hello World",
		"content":      "first!",
		"tags":         []string{"go"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create discussion: status = %d body=%s", w.Code, w.Body.String())
	}
	var d models.Discussion
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode discussion: %v", err)
	}
	if d.Slug != "hello-world" {
		t.Fatalf("slug = %q, want hello-world", d.Slug)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/discussions/"+d.ID.String(), bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get discussion: status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/discussions/"+d.ID.String()+"/votes", bearer, gin.H{"vote_type": "upvote"})
	if w.Code != http.StatusOK {
		t.Fatalf("cast vote: status = %d body=%s", w.Code, w.Body.String())
	}
	var res engine.VoteResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode vote result: %v", err)
	}
	if res.Outcome != engine.OutcomeAdded || res.VoteScore != 1 {
		t.Fatalf("vote result = %+v, want added/1", res)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/discussions/"+d.ID.String()+"/replies", bearer, gin.H{"content": "welcome"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create reply: status = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/communities/"+community.ID.String()+"/discussions", bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list discussions: status = %d", w.Code)
	}
	var page realtime.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != d.ID {
		t.Fatalf("listing = %v, want [%s]", page.Items, d.ID)
	}
	if page.Items[0].ReplyCount != 1 {
		t.Fatalf("reply count = %d, want 1", page.Items[0].ReplyCount)
	}
}

func TestErrorMappingOverHTTP(t *testing.T) {
	srv, _ := newTestRouter(t)
	bearer := bearerFor(t, uuid.New(), "someone")

	w := doJSON(t, srv, http.MethodGet, "/v1/discussions/not-a-uuid", bearer, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/discussions/"+uuid.NewString(), bearer, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing discussion: status = %d, want 404", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/discussions/"+uuid.NewString()+"/votes", bearer, gin.H{"vote_type": "sideways"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad vote type: status = %d, want 400", w.Code)
	}
}
