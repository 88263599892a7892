package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
	"github.com/lalith-99/agora/internal/repository/memory"
	"go.uber.org/zap"
)

func newTestLifecycle(store *memory.Store) *Lifecycle {
	return NewLifecycle(
		store.Communities(), store.Discussions(), store.Replies(),
		store, nil, nil, nil, zap.NewNop(),
	)
}

func identity(name string) Identity {
	return Identity{UserID: uuid.New(), DisplayName: name}
}

// setupCommunity creates a community owned by owner and returns it.
func setupCommunity(t *testing.T, l *Lifecycle, owner Identity) *models.Community {
	t.Helper()
	c, err := l.CreateCommunity(context.Background(), owner, CreateCommunityInput{Name: "Gophers United"})
	if err != nil {
		t.Fatalf("create community: %v", err)
	}
	return c
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello-world"},
		{"  Go & Postgres: a love story!  ", "go-postgres-a-love-story"},
		{"already-slugged", "already-slugged"},
		{"???", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreateDiscussionAuthz(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	in := CreateDiscussionInput{
		CommunityID: c.ID,
		Title:       "First post",
		Content:     "hello",
		Category:    models.CategoryGeneral,
		Tags:        []string{"Go", "go", " networking "},
	}

	if _, err := l.CreateDiscussion(ctx, Identity{}, in); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("anonymous create: err = %v, want ErrUnauthorized", err)
	}
	if _, err := l.CreateDiscussion(ctx, identity("stranger"), in); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("non-member create: err = %v, want ErrForbidden", err)
	}

	d, err := l.CreateDiscussion(ctx, owner, in)
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}
	if d.Slug != "first-post" {
		t.Fatalf("slug = %q, want first-post", d.Slug)
	}
	// Tags come back lowercased, trimmed, de-duplicated, order kept.
	if len(d.Tags) != 2 || d.Tags[0] != "go" || d.Tags[1] != "networking" {
		t.Fatalf("tags = %v, want [go networking]", d.Tags)
	}
	if d.Status != models.StatusActive {
		t.Fatalf("status = %q, want active", d.Status)
	}
}

func TestJoinThenCreate(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	member := identity("member")
	c := setupCommunity(t, l, owner)

	if err := l.JoinCommunity(ctx, member, c.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := l.CreateDiscussion(ctx, member, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryQuestion,
	}); err != nil {
		t.Fatalf("member create after join: %v", err)
	}
}

func TestGetDiscussionBumpsViews(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := l.GetDiscussion(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ViewCount != 1 {
		t.Fatalf("view count = %d, want 1", got.ViewCount)
	}
	if _, err := l.GetDiscussion(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing discussion: err = %v, want ErrNotFound", err)
	}
}

func TestSetPinnedModeratorGateAndIdempotence(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	member := identity("member")
	c := setupCommunity(t, l, owner)
	if err := l.JoinCommunity(ctx, member, c.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	d, err := l.CreateDiscussion(ctx, member, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Authorship alone does not grant pin rights.
	if _, err := l.SetPinned(ctx, member, d.ID, true); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("author pin: err = %v, want ErrForbidden", err)
	}

	pinned, err := l.SetPinned(ctx, owner, d.ID, true)
	if err != nil {
		t.Fatalf("owner pin: %v", err)
	}
	if !pinned.IsPinned {
		t.Fatalf("discussion not pinned")
	}
	// Pinning again is a no-op success.
	again, err := l.SetPinned(ctx, owner, d.ID, true)
	if err != nil {
		t.Fatalf("repeat pin: %v", err)
	}
	if !again.IsPinned {
		t.Fatalf("repeat pin unset the flag")
	}

	got, err := l.ListPinned(ctx, c.ID)
	if err != nil {
		t.Fatalf("list pinned: %v", err)
	}
	if len(got) != 1 || got[0].ID != d.ID {
		t.Fatalf("pinned listing = %v, want [%s]", got, d.ID)
	}
}

func TestDeleteDiscussionTombstone(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.DeleteDiscussion(ctx, owner, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := l.GetDiscussion(ctx, d.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("get deleted: err = %v, want ErrNotFound", err)
	}
	list, err := l.ListDiscussions(ctx, repository.DiscussionFilter{CommunityID: c.ID}, repository.PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted discussion still listed: %d rows", len(list))
	}
	// The tombstone survives in the store for moderation tooling.
	raw, err := store.GetDiscussion(ctx, d.ID)
	if err != nil || raw == nil {
		t.Fatalf("tombstone gone from store: %v %v", raw, err)
	}
	if raw.Status != models.StatusDeleted || raw.DeletedAt == nil {
		t.Fatalf("tombstone state = %q deletedAt=%v", raw.Status, raw.DeletedAt)
	}
}

func TestLockedDiscussionRejectsReplies(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := l.SetLocked(ctx, owner, d.ID, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err = l.CreateReply(ctx, owner, CreateReplyInput{DiscussionID: d.ID, Content: "late"})
	if !errors.Is(err, errs.ErrLocked) {
		t.Fatalf("reply to locked: err = %v, want ErrLocked", err)
	}
}

func TestCreateReplyParentIntegrity(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d1, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "one", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create d1: %v", err)
	}
	d2, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "two", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create d2: %v", err)
	}

	parent, err := l.CreateReply(ctx, owner, CreateReplyInput{DiscussionID: d1.ID, Content: "top"})
	if err != nil {
		t.Fatalf("create parent reply: %v", err)
	}
	if parent.Depth != 0 {
		t.Fatalf("top-level depth = %d, want 0", parent.Depth)
	}

	child, err := l.CreateReply(ctx, owner, CreateReplyInput{
		DiscussionID: d1.ID, Content: "nested", ParentReplyID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("create child reply: %v", err)
	}
	if child.Depth != 1 {
		t.Fatalf("child depth = %d, want 1", child.Depth)
	}

	// A parent from another discussion is a malformed reference.
	_, err = l.CreateReply(ctx, owner, CreateReplyInput{
		DiscussionID: d2.ID, Content: "cross", ParentReplyID: &parent.ID,
	})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("cross-discussion parent: err = %v, want ErrInvalidArgument", err)
	}

	missing := uuid.New()
	_, err = l.CreateReply(ctx, owner, CreateReplyInput{
		DiscussionID: d1.ID, Content: "orphan", ParentReplyID: &missing,
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing parent: err = %v, want ErrNotFound", err)
	}

	got, err := l.GetDiscussion(ctx, d1.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReplyCount != 2 {
		t.Fatalf("reply count = %d, want 2", got.ReplyCount)
	}
}

func TestListRepliesBlanksTombstones(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err := l.CreateReply(ctx, owner, CreateReplyInput{DiscussionID: d.ID, Content: "secret"})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}
	if err := l.DeleteReply(ctx, owner, r.ID); err != nil {
		t.Fatalf("delete reply: %v", err)
	}

	replies, err := l.ListReplies(ctx, d.ID)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want the tombstone to stay listed", len(replies))
	}
	if replies[0].Content != "" || replies[0].AuthorInfo.DisplayName != "[deleted]" {
		t.Fatalf("tombstone not blanked: content=%q author=%q", replies[0].Content, replies[0].AuthorInfo.DisplayName)
	}
}

func TestUpdateDiscussionConditionalEdit(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "renamed"
	updated, err := l.UpdateDiscussion(ctx, owner, d.ID, UpdateDiscussionInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsEdited || updated.Title != "renamed" {
		t.Fatalf("edit not applied: %+v", updated)
	}

	// A stale precondition loses.
	stale := d.UpdatedAt
	_, err = l.UpdateDiscussion(ctx, owner, d.ID, UpdateDiscussionInput{Title: &title, IfUnmodifiedSince: &stale})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("stale edit: err = %v, want ErrConflict", err)
	}
}

func TestTransitionTargets(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(store)
	ctx := context.Background()
	owner := identity("owner")
	c := setupCommunity(t, l, owner)

	d, err := l.CreateDiscussion(ctx, owner, CreateDiscussionInput{
		CommunityID: c.ID, Title: "t", Content: "c", Category: models.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := l.Transition(ctx, owner, d.ID, models.StatusActive); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("transition to active: err = %v, want ErrInvalidArgument", err)
	}
	closed, err := l.Transition(ctx, owner, d.ID, models.StatusClosed)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.StatusClosed {
		t.Fatalf("status = %q, want closed", closed.Status)
	}
	if _, err := l.CreateReply(ctx, owner, CreateReplyInput{DiscussionID: d.ID, Content: "late"}); !errors.Is(err, errs.ErrLocked) {
		t.Fatalf("reply to closed: err = %v, want ErrLocked", err)
	}
}
