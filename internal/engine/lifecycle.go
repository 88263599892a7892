package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
	"go.uber.org/zap"
)

const (
	maxTags         = 10
	maxTitleLen     = 300
	maxContentLen   = 40000
	maxReplyFetch   = 1000
	pinnedSetLimit  = 10
)

// Identity is the authenticated caller as handed over by the identity
// provider. UserID == uuid.Nil means anonymous.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	PhotoURL    string
	Role        string
}

func (id Identity) authorInfo() models.AuthorInfo {
	return models.AuthorInfo{
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Role:        id.Role,
	}
}

// Lifecycle manages discussion and reply CRUD plus state transitions. It is
// explicitly constructed with its stores so tests can hand it an isolated
// backend — no package-level singletons.
type Lifecycle struct {
	communities repository.CommunityRepository
	discussions repository.DiscussionRepository
	replies     repository.ReplyRepository
	roles       RoleService
	recorder    ActivityRecorder
	notifier    Notifier
	publisher   Publisher
	logger      *zap.Logger

	now func() time.Time
}

func NewLifecycle(
	communities repository.CommunityRepository,
	discussions repository.DiscussionRepository,
	replies repository.ReplyRepository,
	roles RoleService,
	recorder ActivityRecorder,
	notifier Notifier,
	publisher Publisher,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		communities: communities,
		discussions: discussions,
		replies:     replies,
		roles:       roles,
		recorder:    recorder,
		notifier:    notifier,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s-]+`)
var spaces = regexp.MustCompile(`\s+`)

// Slugify derives a URL-safe slug from a title: lowercased, non-word
// characters stripped, whitespace collapsed to single hyphens.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWord.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CreateCommunityInput carries the fields for a new community.
type CreateCommunityInput struct {
	Name string
	Slug string
}

func (l *Lifecycle) CreateCommunity(ctx context.Context, actor Identity, in CreateCommunityInput) (*models.Community, error) {
	if actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("create community: %w", errs.ErrUnauthorized)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("create community: empty name: %w", errs.ErrInvalidArgument)
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	now := l.now().UTC()
	c := &models.Community{
		ID:          uuid.New(),
		Slug:        slug,
		Name:        strings.TrimSpace(in.Name),
		MemberCount: 1,
		OwnerID:     actor.UserID,
		CreatedAt:   now,
	}
	if err := l.communities.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create community: %w", err)
	}
	return c, nil
}

// JoinCommunity adds the caller as a member and feeds the new-member
// analytics counter.
func (l *Lifecycle) JoinCommunity(ctx context.Context, actor Identity, communityID uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return fmt.Errorf("join community: %w", errs.ErrUnauthorized)
	}
	c, err := l.communities.GetByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("join community: %w", err)
	}
	if c == nil || c.IsArchived {
		return fmt.Errorf("join community %s: %w", communityID, errs.ErrNotFound)
	}
	if err := l.communities.AddMember(ctx, communityID, actor.UserID); err != nil {
		return fmt.Errorf("join community: %w", err)
	}
	if l.recorder != nil {
		l.recorder.Record(ctx, communityID, models.EventMemberJoined, nil, l.now().UTC())
	}
	return nil
}

// CreateDiscussionInput carries the author-supplied fields.
type CreateDiscussionInput struct {
	CommunityID uuid.UUID
	Title       string
	Content     string
	Category    models.DiscussionCategory
	Tags        []string
}

func (l *Lifecycle) CreateDiscussion(ctx context.Context, actor Identity, in CreateDiscussionInput) (*models.Discussion, error) {
	if actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("create discussion: %w", errs.ErrUnauthorized)
	}
	if err := validateDiscussionFields(in.Title, in.Content, in.Tags); err != nil {
		return nil, fmt.Errorf("create discussion: %w", err)
	}

	community, err := l.communities.GetByID(ctx, in.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("create discussion: %w", err)
	}
	if community == nil || community.IsArchived {
		return nil, fmt.Errorf("create discussion: community %s: %w", in.CommunityID, errs.ErrNotFound)
	}

	m, err := l.roles.Membership(ctx, in.CommunityID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("create discussion: roles: %w", err)
	}
	if !m.IsMember && !m.CanModerate() {
		return nil, fmt.Errorf("create discussion: not a member: %w", errs.ErrForbidden)
	}

	now := l.now().UTC()
	d := &models.Discussion{
		ID:             uuid.New(),
		CommunityID:    in.CommunityID,
		AuthorID:       actor.UserID,
		AuthorInfo:     actor.authorInfo(),
		Title:          strings.TrimSpace(in.Title),
		Slug:           Slugify(in.Title),
		Content:        in.Content,
		Category:       in.Category,
		Tags:           normalizeTags(in.Tags),
		Status:         models.StatusActive,
		Votes:          []models.Vote{},
		VoterIDs:       []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	if err := l.discussions.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create discussion: %w", err)
	}

	if l.recorder != nil {
		l.recorder.Record(ctx, d.CommunityID, models.EventDiscussionCreated, d.Tags, now)
	}
	if l.publisher != nil {
		l.publisher.Publish(Change{
			Kind:         ChangeCreated,
			Item:         models.ItemDiscussion,
			ItemID:       d.ID,
			CommunityID:  d.CommunityID,
			DiscussionID: d.ID,
			At:           now,
		})
	}
	return d, nil
}

// GetDiscussion returns one discussion and bumps its view counter.
// Tombstoned discussions are NotFound through this path; moderation tooling
// reads the store directly.
func (l *Lifecycle) GetDiscussion(ctx context.Context, id uuid.UUID) (*models.Discussion, error) {
	d, err := l.discussions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get discussion: %w", err)
	}
	if d == nil || d.Status == models.StatusDeleted {
		return nil, fmt.Errorf("get discussion %s: %w", id, errs.ErrNotFound)
	}
	if err := l.discussions.IncrementViewCount(ctx, id); err != nil {
		// View counts are best-effort; losing one is not worth failing the read.
		l.logger.Warn("increment view count", zap.Error(err), zap.String("discussion_id", id.String()))
	} else {
		d.ViewCount++
	}
	return d, nil
}

// ListDiscussions returns one keyset page of non-deleted discussions.
func (l *Lifecycle) ListDiscussions(ctx context.Context, filter repository.DiscussionFilter, page repository.PageRequest) ([]models.Discussion, error) {
	filter.IncludeDeleted = false
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Sort == "" {
		page.Sort = repository.SortCreatedAt
	}
	out, err := l.discussions.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	return out, nil
}

// UpdateDiscussionInput carries an edit. Nil pointers leave the field
// unchanged. IfUnmodifiedSince, when set, makes the edit conditional on
// UpdatedAt — a cheap lost-update detector, optional per caller.
type UpdateDiscussionInput struct {
	Title             *string
	Content           *string
	Tags              []string
	IfUnmodifiedSince *time.Time
}

func (l *Lifecycle) UpdateDiscussion(ctx context.Context, actor Identity, id uuid.UUID, in UpdateDiscussionInput) (*models.Discussion, error) {
	d, err := l.requireEditable(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("update discussion: %w", err)
	}
	if in.IfUnmodifiedSince != nil && !d.UpdatedAt.Equal(*in.IfUnmodifiedSince) {
		return nil, fmt.Errorf("update discussion: modified since %s: %w", in.IfUnmodifiedSince, errs.ErrConflict)
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("update discussion: empty title: %w", errs.ErrInvalidArgument)
		}
		d.Title = strings.TrimSpace(*in.Title)
		d.Slug = Slugify(d.Title)
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, fmt.Errorf("update discussion: empty content: %w", errs.ErrInvalidArgument)
		}
		d.Content = *in.Content
	}
	if in.Tags != nil {
		if len(in.Tags) > maxTags {
			return nil, fmt.Errorf("update discussion: %d tags exceeds cap of %d: %w", len(in.Tags), maxTags, errs.ErrInvalidArgument)
		}
		d.Tags = normalizeTags(in.Tags)
	}

	now := l.now().UTC()
	d.IsEdited = true
	d.EditedAt = &now
	actorID := actor.UserID
	d.EditedBy = &actorID
	d.UpdatedAt = now

	if err := l.discussions.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update discussion: %w", err)
	}
	l.publishUpdated(models.ItemDiscussion, d.ID, d.CommunityID, d.ID, now)
	return d, nil
}

// SetPinned pins or unpins a discussion. Moderator-gated and idempotent:
// pinning an already-pinned discussion is a no-op success.
func (l *Lifecycle) SetPinned(ctx context.Context, actor Identity, id uuid.UUID, pinned bool) (*models.Discussion, error) {
	return l.setFlag(ctx, actor, id, "pin", func(d *models.Discussion) *bool {
		return &d.IsPinned
	}, pinned)
}

// SetLocked locks or unlocks a discussion. Locked discussions accept no new
// replies; existing content stays votable while the discussion is active.
func (l *Lifecycle) SetLocked(ctx context.Context, actor Identity, id uuid.UUID, locked bool) (*models.Discussion, error) {
	return l.setFlag(ctx, actor, id, "lock", func(d *models.Discussion) *bool {
		return &d.IsLocked
	}, locked)
}

// SetFeatured features or unfeatures a discussion.
func (l *Lifecycle) SetFeatured(ctx context.Context, actor Identity, id uuid.UUID, featured bool) (*models.Discussion, error) {
	return l.setFlag(ctx, actor, id, "feature", func(d *models.Discussion) *bool {
		return &d.IsFeatured
	}, featured)
}

func (l *Lifecycle) setFlag(ctx context.Context, actor Identity, id uuid.UUID, op string, field func(*models.Discussion) *bool, want bool) (*models.Discussion, error) {
	d, err := l.requireModeratable(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("%s discussion: %w", op, err)
	}
	f := field(d)
	if *f == want {
		return d, nil // idempotent no-op
	}
	*f = want
	d.UpdatedAt = l.now().UTC()
	if err := l.discussions.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("%s discussion: %w", op, err)
	}
	l.publishUpdated(models.ItemDiscussion, d.ID, d.CommunityID, d.ID, d.UpdatedAt)
	return d, nil
}

// Transition moves a discussion to closed or archived. active is not a
// valid target; deletion goes through DeleteDiscussion.
func (l *Lifecycle) Transition(ctx context.Context, actor Identity, id uuid.UUID, target models.Status) (*models.Discussion, error) {
	if target != models.StatusClosed && target != models.StatusArchived {
		return nil, fmt.Errorf("transition discussion: invalid target %q: %w", target, errs.ErrInvalidArgument)
	}
	d, err := l.requireModeratable(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("transition discussion: %w", err)
	}
	if d.Status == target {
		return d, nil
	}
	d.Status = target
	d.UpdatedAt = l.now().UTC()
	if err := l.discussions.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("transition discussion: %w", err)
	}
	l.publishUpdated(models.ItemDiscussion, d.ID, d.CommunityID, d.ID, d.UpdatedAt)
	return d, nil
}

// DeleteDiscussion tombstones a discussion. The record is retained and the
// replies are kept (reachable by direct id) but the discussion drops out of
// all default listings. Author or moderator only.
func (l *Lifecycle) DeleteDiscussion(ctx context.Context, actor Identity, id uuid.UUID) error {
	d, err := l.requireEditable(ctx, actor, id)
	if err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	now := l.now().UTC()
	actorID := actor.UserID
	d.Status = models.StatusDeleted
	d.DeletedAt = &now
	d.DeletedBy = &actorID
	d.UpdatedAt = now
	if err := l.discussions.Update(ctx, d); err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	if l.publisher != nil {
		l.publisher.Publish(Change{
			Kind:         ChangeDeleted,
			Item:         models.ItemDiscussion,
			ItemID:       d.ID,
			CommunityID:  d.CommunityID,
			DiscussionID: d.ID,
			At:           now,
		})
	}
	return nil
}

// CreateReplyInput carries a new reply. ParentReplyID nil means a top-level
// reply to the discussion.
type CreateReplyInput struct {
	DiscussionID  uuid.UUID
	Content       string
	ParentReplyID *uuid.UUID
}

func (l *Lifecycle) CreateReply(ctx context.Context, actor Identity, in CreateReplyInput) (*models.Reply, error) {
	if actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("create reply: %w", errs.ErrUnauthorized)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("create reply: empty content: %w", errs.ErrInvalidArgument)
	}

	d, err := l.discussions.GetByID(ctx, in.DiscussionID)
	if err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}
	if d == nil || d.Status == models.StatusDeleted {
		return nil, fmt.Errorf("create reply: discussion %s: %w", in.DiscussionID, errs.ErrNotFound)
	}
	if d.Status != models.StatusActive || d.IsLocked {
		return nil, fmt.Errorf("create reply: discussion is %s: %w", describeClosed(d), errs.ErrLocked)
	}

	depth := 0
	recipient := d.AuthorID
	if in.ParentReplyID != nil {
		parent, err := l.replies.GetByID(ctx, *in.ParentReplyID)
		if err != nil {
			return nil, fmt.Errorf("create reply: %w", err)
		}
		if parent == nil || parent.Status == models.StatusDeleted {
			return nil, fmt.Errorf("create reply: parent reply %s: %w", *in.ParentReplyID, errs.ErrNotFound)
		}
		// Integrity rule: a parent outside this discussion would corrupt
		// the forest. Reject as a malformed reference, not as missing.
		if parent.DiscussionID != in.DiscussionID {
			return nil, fmt.Errorf("create reply: parent %s belongs to discussion %s: %w",
				parent.ID, parent.DiscussionID, errs.ErrInvalidArgument)
		}
		depth = parent.Depth + 1
		recipient = parent.AuthorID
	}

	now := l.now().UTC()
	r := &models.Reply{
		ID:            uuid.New(),
		DiscussionID:  in.DiscussionID,
		CommunityID:   d.CommunityID,
		AuthorID:      actor.UserID,
		AuthorInfo:    actor.authorInfo(),
		Content:       in.Content,
		ParentReplyID: in.ParentReplyID,
		Depth:         depth,
		Status:        models.StatusActive,
		Votes:         []models.Vote{},
		VoterIDs:      []uuid.UUID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.replies.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}
	if err := l.discussions.AdjustReplyCount(ctx, d.ID, 1, actor.UserID, now); err != nil {
		l.logger.Warn("adjust reply count", zap.Error(err), zap.String("discussion_id", d.ID.String()))
	}

	if l.recorder != nil {
		l.recorder.Record(ctx, d.CommunityID, models.EventReplyCreated, d.Tags, now)
	}
	if l.publisher != nil {
		l.publisher.Publish(Change{
			Kind:         ChangeCreated,
			Item:         models.ItemReply,
			ItemID:       r.ID,
			CommunityID:  d.CommunityID,
			DiscussionID: d.ID,
			At:           now,
		})
	}
	if l.notifier != nil && recipient != actor.UserID {
		l.notifier.Notify(ctx, Notification{
			Kind:         "new_reply",
			Item:         models.ItemReply,
			ItemID:       r.ID,
			RecipientID:  recipient,
			ActorID:      actor.UserID,
			CommunityID:  d.CommunityID,
			DiscussionID: d.ID,
		})
	}
	return r, nil
}

// ListReplies returns a discussion's replies in creation order. Tombstoned
// replies come back with blanked content so the thread keeps its shape.
func (l *Lifecycle) ListReplies(ctx context.Context, discussionID uuid.UUID) ([]models.Reply, error) {
	d, err := l.discussions.GetByID(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("list replies: discussion %s: %w", discussionID, errs.ErrNotFound)
	}
	replies, err := l.replies.ListByDiscussion(ctx, discussionID, maxReplyFetch)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	for i := range replies {
		if replies[i].Status == models.StatusDeleted {
			replies[i].Content = ""
			replies[i].AuthorInfo = models.AuthorInfo{DisplayName: "[deleted]"}
		}
	}
	return replies, nil
}

// GetReplyTree fetches a discussion's replies and reconstructs the forest.
func (l *Lifecycle) GetReplyTree(ctx context.Context, discussionID uuid.UUID) ([]*ReplyNode, error) {
	replies, err := l.ListReplies(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	return BuildReplyTree(replies), nil
}

// UpdateReply edits a reply's content. Author or moderator only.
func (l *Lifecycle) UpdateReply(ctx context.Context, actor Identity, id uuid.UUID, content string) (*models.Reply, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("update reply: empty content: %w", errs.ErrInvalidArgument)
	}
	r, err := l.requireReplyEditable(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("update reply: %w", err)
	}
	r.Content = content
	r.IsEdited = true
	r.UpdatedAt = l.now().UTC()
	if err := l.replies.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update reply: %w", err)
	}
	l.publishUpdated(models.ItemReply, r.ID, r.CommunityID, r.DiscussionID, r.UpdatedAt)
	return r, nil
}

// DeleteReply tombstones a reply. Children are kept; the tree builder
// renders them under the tombstone.
func (l *Lifecycle) DeleteReply(ctx context.Context, actor Identity, id uuid.UUID) error {
	r, err := l.requireReplyEditable(ctx, actor, id)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	now := l.now().UTC()
	r.Status = models.StatusDeleted
	r.UpdatedAt = now
	if err := l.replies.Update(ctx, r); err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if err := l.discussions.AdjustReplyCount(ctx, r.DiscussionID, -1, actor.UserID, now); err != nil {
		l.logger.Warn("adjust reply count", zap.Error(err), zap.String("discussion_id", r.DiscussionID.String()))
	}
	if l.publisher != nil {
		l.publisher.Publish(Change{
			Kind:         ChangeDeleted,
			Item:         models.ItemReply,
			ItemID:       r.ID,
			CommunityID:  r.CommunityID,
			DiscussionID: r.DiscussionID,
			At:           now,
		})
	}
	return nil
}

// ListPinned returns the community's pinned discussions, bounded by the
// fixed pinned-set limit.
func (l *Lifecycle) ListPinned(ctx context.Context, communityID uuid.UUID) ([]models.Discussion, error) {
	out, err := l.discussions.ListPinned(ctx, communityID, pinnedSetLimit)
	if err != nil {
		return nil, fmt.Errorf("list pinned: %w", err)
	}
	return out, nil
}

// --- authorization helpers ---

// requireEditable loads a live discussion and checks the actor is its
// author or holds moderation rights.
func (l *Lifecycle) requireEditable(ctx context.Context, actor Identity, id uuid.UUID) (*models.Discussion, error) {
	if actor.UserID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	d, err := l.discussions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Status == models.StatusDeleted {
		return nil, fmt.Errorf("discussion %s: %w", id, errs.ErrNotFound)
	}
	if d.AuthorID == actor.UserID {
		return d, nil
	}
	m, err := l.roles.Membership(ctx, d.CommunityID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	if !m.CanModerate() {
		return nil, fmt.Errorf("user %s: %w", actor.UserID, errs.ErrForbidden)
	}
	return d, nil
}

// requireModeratable loads a live discussion and checks moderation rights;
// authorship alone is not enough for pin/lock/feature/transition.
func (l *Lifecycle) requireModeratable(ctx context.Context, actor Identity, id uuid.UUID) (*models.Discussion, error) {
	if actor.UserID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	d, err := l.discussions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Status == models.StatusDeleted {
		return nil, fmt.Errorf("discussion %s: %w", id, errs.ErrNotFound)
	}
	m, err := l.roles.Membership(ctx, d.CommunityID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	if !m.CanModerate() {
		return nil, fmt.Errorf("user %s: %w", actor.UserID, errs.ErrForbidden)
	}
	return d, nil
}

func (l *Lifecycle) requireReplyEditable(ctx context.Context, actor Identity, id uuid.UUID) (*models.Reply, error) {
	if actor.UserID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	r, err := l.replies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Status == models.StatusDeleted {
		return nil, fmt.Errorf("reply %s: %w", id, errs.ErrNotFound)
	}
	if r.AuthorID == actor.UserID {
		return r, nil
	}
	m, err := l.roles.Membership(ctx, r.CommunityID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	if !m.CanModerate() {
		return nil, fmt.Errorf("user %s: %w", actor.UserID, errs.ErrForbidden)
	}
	return r, nil
}

func (l *Lifecycle) publishUpdated(item models.ItemType, id, communityID, discussionID uuid.UUID, at time.Time) {
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(Change{
		Kind:         ChangeUpdated,
		Item:         item,
		ItemID:       id,
		CommunityID:  communityID,
		DiscussionID: discussionID,
		At:           at,
	})
}

func validateDiscussionFields(title, content string, tags []string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("empty title: %w", errs.ErrInvalidArgument)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("title exceeds %d chars: %w", maxTitleLen, errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty content: %w", errs.ErrInvalidArgument)
	}
	if len(content) > maxContentLen {
		return fmt.Errorf("content exceeds %d chars: %w", maxContentLen, errs.ErrInvalidArgument)
	}
	if len(tags) > maxTags {
		return fmt.Errorf("%d tags exceeds cap of %d: %w", len(tags), maxTags, errs.ErrInvalidArgument)
	}
	return nil
}

// normalizeTags lowercases, trims, and de-duplicates while keeping first
// occurrence order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func describeClosed(d *models.Discussion) string {
	if d.IsLocked && d.Status == models.StatusActive {
		return "locked"
	}
	return string(d.Status)
}
