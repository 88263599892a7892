// Package memory is an in-memory repository backend. It mirrors the
// postgres backend's semantics — including version-checked vote swaps and
// keyset pagination — so engine, realtime, and analytics code can be tested
// against an isolated store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

type bucketKey struct {
	communityID uuid.UUID
	periodType  models.PeriodType
	periodStart int64 // unix seconds, map-key friendly
}

// Store implements every repository interface over process memory. One
// mutex guards everything; contention is irrelevant at test scale.
type Store struct {
	mu          sync.Mutex
	communities map[uuid.UUID]*models.Community
	members     map[uuid.UUID]map[uuid.UUID]bool
	discussions map[uuid.UUID]*models.Discussion
	replies     map[uuid.UUID]*models.Reply
	buckets     map[bucketKey]*models.AnalyticsBucket
}

func NewStore() *Store {
	return &Store{
		communities: make(map[uuid.UUID]*models.Community),
		members:     make(map[uuid.UUID]map[uuid.UUID]bool),
		discussions: make(map[uuid.UUID]*models.Discussion),
		replies:     make(map[uuid.UUID]*models.Reply),
		buckets:     make(map[bucketKey]*models.AnalyticsBucket),
	}
}

// The per-entity repository interfaces overlap in method names (Create,
// GetByID, Update), so Store exposes them through thin facades rather than
// implementing all five interfaces on one receiver.

// Communities returns the CommunityRepository view of the store.
func (s *Store) Communities() repository.CommunityRepository { return communityFacade{s} }

// Discussions returns the DiscussionRepository view of the store.
func (s *Store) Discussions() repository.DiscussionRepository { return discussionFacade{s} }

// Replies returns the ReplyRepository view of the store.
func (s *Store) Replies() repository.ReplyRepository { return replyFacade{s} }

// Votes returns the VoteStore view of the store.
func (s *Store) Votes() repository.VoteStore { return s }

// Analytics returns the AnalyticsRepository view of the store.
func (s *Store) Analytics() repository.AnalyticsRepository { return s }

var (
	_ repository.VoteStore           = (*Store)(nil)
	_ repository.AnalyticsRepository = (*Store)(nil)
)

// --- CommunityRepository ---

func (s *Store) CreateCommunity(ctx context.Context, c *models.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.communities[c.ID] = &cp
	s.members[c.ID] = map[uuid.UUID]bool{c.OwnerID: true}
	return nil
}

func (s *Store) GetCommunity(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCommunityBySlug(ctx context.Context, slug string) (*models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.communities {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) Membership(ctx context.Context, communityID, userID uuid.UUID) (repository.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return repository.Membership{}, fmt.Errorf("community %s: %w", communityID, errs.ErrNotFound)
	}
	m := repository.Membership{
		IsMember: s.members[communityID][userID],
		IsOwner:  c.OwnerID == userID,
	}
	for _, id := range c.AdminIDs {
		if id == userID {
			m.IsAdmin = true
		}
	}
	for _, id := range c.ModeratorIDs {
		if id == userID {
			m.IsModerator = true
		}
	}
	return m, nil
}

func (s *Store) AddMember(ctx context.Context, communityID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return fmt.Errorf("community %s: %w", communityID, errs.ErrNotFound)
	}
	if !s.members[communityID][userID] {
		s.members[communityID][userID] = true
		c.MemberCount++
	}
	return nil
}

// SetModerators replaces the moderator set. Test helper; the real role
// service lives outside this engine.
func (s *Store) SetModerators(communityID uuid.UUID, userIDs ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.communities[communityID]; ok {
		c.ModeratorIDs = append([]uuid.UUID{}, userIDs...)
	}
}

// --- DiscussionRepository ---

func (s *Store) CreateDiscussion(ctx context.Context, d *models.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneDiscussion(d)
	s.discussions[d.ID] = cp
	return nil
}

func (s *Store) GetDiscussion(ctx context.Context, id uuid.UUID) (*models.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return nil, nil
	}
	return cloneDiscussion(d), nil
}

func (s *Store) List(ctx context.Context, filter repository.DiscussionFilter, page repository.PageRequest) ([]models.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*models.Discussion, 0)
	for _, d := range s.discussions {
		if !matchFilter(d, filter) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		return sortsBefore(matched[i], matched[j], page.Sort)
	})

	out := make([]models.Discussion, 0, page.Limit)
	for _, d := range matched {
		if page.After != nil && !afterMark(d, page.After, page.Sort) {
			continue
		}
		out = append(out, *cloneDiscussion(d))
		if page.Limit > 0 && len(out) >= page.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListPinned(ctx context.Context, communityID uuid.UUID, limit int) ([]models.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := make([]*models.Discussion, 0)
	for _, d := range s.discussions {
		if d.CommunityID == communityID && d.IsPinned && d.Status != models.StatusDeleted {
			pinned = append(pinned, d)
		}
	}
	sort.Slice(pinned, func(i, j int) bool {
		return sortsBefore(pinned[i], pinned[j], repository.SortCreatedAt)
	})
	if limit > 0 && len(pinned) > limit {
		pinned = pinned[:limit]
	}
	out := make([]models.Discussion, 0, len(pinned))
	for _, d := range pinned {
		out = append(out, *cloneDiscussion(d))
	}
	return out, nil
}

func (s *Store) UpdateDiscussion(ctx context.Context, d *models.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.discussions[d.ID]
	if !ok {
		return fmt.Errorf("discussion %s: %w", d.ID, errs.ErrNotFound)
	}
	// Metadata write only: vote state stays whatever the store holds.
	cp := cloneDiscussion(d)
	cp.Votes = cur.Votes
	cp.VoterIDs = cur.VoterIDs
	cp.UpvoteCount = cur.UpvoteCount
	cp.DownvoteCount = cur.DownvoteCount
	cp.VoteScore = cur.VoteScore
	cp.Version = cur.Version
	cp.ReplyCount = cur.ReplyCount
	cp.ViewCount = cur.ViewCount
	s.discussions[d.ID] = cp
	return nil
}

func (s *Store) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return fmt.Errorf("discussion %s: %w", id, errs.ErrNotFound)
	}
	d.ViewCount++
	return nil
}

func (s *Store) AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int, actor uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return fmt.Errorf("discussion %s: %w", id, errs.ErrNotFound)
	}
	d.ReplyCount += delta
	d.LastActivityAt = at
	actorCp := actor
	d.LastActivityBy = &actorCp
	return nil
}

// --- ReplyRepository ---

func (s *Store) CreateReply(ctx context.Context, r *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[r.ID] = cloneReply(r)
	return nil
}

func (s *Store) GetReply(ctx context.Context, id uuid.UUID) (*models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replies[id]
	if !ok {
		return nil, nil
	}
	return cloneReply(r), nil
}

func (s *Store) ListByDiscussion(ctx context.Context, discussionID uuid.UUID, limit int) ([]models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reply, 0)
	for _, r := range s.replies {
		if r.DiscussionID == discussionID {
			out = append(out, *cloneReply(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateReply(ctx context.Context, r *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.replies[r.ID]
	if !ok {
		return fmt.Errorf("reply %s: %w", r.ID, errs.ErrNotFound)
	}
	cp := cloneReply(r)
	cp.Votes = cur.Votes
	cp.VoterIDs = cur.VoterIDs
	cp.UpvoteCount = cur.UpvoteCount
	cp.DownvoteCount = cur.DownvoteCount
	cp.VoteScore = cur.VoteScore
	cp.Version = cur.Version
	s.replies[r.ID] = cp
	return nil
}

// --- VoteStore ---

func (s *Store) GetVoteState(ctx context.Context, item models.ItemType, id uuid.UUID) (*repository.VoteState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch item {
	case models.ItemDiscussion:
		d, ok := s.discussions[id]
		if !ok {
			return nil, nil
		}
		return &repository.VoteState{
			Version:       d.Version,
			Votes:         append([]models.Vote{}, d.Votes...),
			UpvoteCount:   d.UpvoteCount,
			DownvoteCount: d.DownvoteCount,
			VoteScore:     d.VoteScore,
			Status:        d.Status,
			CommunityID:   d.CommunityID,
			DiscussionID:  d.ID,
			AuthorID:      d.AuthorID,
		}, nil
	case models.ItemReply:
		r, ok := s.replies[id]
		if !ok {
			return nil, nil
		}
		return &repository.VoteState{
			Version:       r.Version,
			Votes:         append([]models.Vote{}, r.Votes...),
			UpvoteCount:   r.UpvoteCount,
			DownvoteCount: r.DownvoteCount,
			VoteScore:     r.VoteScore,
			Status:        r.Status,
			CommunityID:   r.CommunityID,
			DiscussionID:  r.DiscussionID,
			AuthorID:      r.AuthorID,
		}, nil
	default:
		return nil, fmt.Errorf("unknown item type %q: %w", item, errs.ErrInvalidArgument)
	}
}

func (s *Store) SwapVoteState(ctx context.Context, item models.ItemType, id uuid.UUID, expectedVersion int64, st *repository.VoteState, actor uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch item {
	case models.ItemDiscussion:
		d, ok := s.discussions[id]
		if !ok {
			return fmt.Errorf("discussion %s: %w", id, errs.ErrNotFound)
		}
		if d.Version != expectedVersion {
			return fmt.Errorf("discussion %s at version %d, expected %d: %w", id, d.Version, expectedVersion, errs.ErrConflict)
		}
		d.Votes = append([]models.Vote{}, st.Votes...)
		d.VoterIDs = st.VoterIDs()
		d.UpvoteCount = st.UpvoteCount
		d.DownvoteCount = st.DownvoteCount
		d.VoteScore = st.VoteScore
		d.Version++
		d.LastActivityAt = at
		actorCp := actor
		d.LastActivityBy = &actorCp
		return nil
	case models.ItemReply:
		r, ok := s.replies[id]
		if !ok {
			return fmt.Errorf("reply %s: %w", id, errs.ErrNotFound)
		}
		if r.Version != expectedVersion {
			return fmt.Errorf("reply %s at version %d, expected %d: %w", id, r.Version, expectedVersion, errs.ErrConflict)
		}
		r.Votes = append([]models.Vote{}, st.Votes...)
		r.VoterIDs = st.VoterIDs()
		r.UpvoteCount = st.UpvoteCount
		r.DownvoteCount = st.DownvoteCount
		r.VoteScore = st.VoteScore
		r.Version++
		r.UpdatedAt = at
		return nil
	default:
		return fmt.Errorf("unknown item type %q: %w", item, errs.ErrInvalidArgument)
	}
}

// --- AnalyticsRepository ---

func (s *Store) UpsertBucket(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, periodStart, periodEnd time.Time, event models.EventType, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucketKey{communityID: communityID, periodType: pt, periodStart: periodStart.Unix()}
	b, ok := s.buckets[key]
	if !ok {
		b = &models.AnalyticsBucket{
			CommunityID: communityID,
			PeriodType:  pt,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			TagCounts:   make(map[string]int64),
		}
		s.buckets[key] = b
	}
	switch event {
	case models.EventDiscussionCreated:
		b.TotalDiscussions++
		b.TotalMessages++
	case models.EventReplyCreated:
		b.TotalMessages++
	case models.EventMemberJoined:
		b.NewMembersCount++
	}
	for _, t := range tags {
		b.TagCounts[t]++
	}
	return nil
}

func (s *Store) ListBuckets(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, from, to time.Time) ([]models.AnalyticsBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnalyticsBucket, 0)
	for _, b := range s.buckets {
		if b.CommunityID != communityID || b.PeriodType != pt {
			continue
		}
		if b.PeriodStart.Before(from) || !b.PeriodStart.Before(to) {
			continue
		}
		cp := *b
		cp.TagCounts = make(map[string]int64, len(b.TagCounts))
		for k, v := range b.TagCounts {
			cp.TagCounts[k] = v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

// --- helpers ---

func matchFilter(d *models.Discussion, f repository.DiscussionFilter) bool {
	if d.Status == models.StatusDeleted && !f.IncludeDeleted {
		return false
	}
	if f.CommunityID != uuid.Nil && d.CommunityID != f.CommunityID {
		return false
	}
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range d.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortValue(d *models.Discussion, key repository.SortKey) (time.Time, int64) {
	switch key {
	case repository.SortVoteScore:
		return time.Time{}, int64(d.VoteScore)
	case repository.SortReplyCount:
		return time.Time{}, int64(d.ReplyCount)
	default:
		return d.CreatedAt, 0
	}
}

// sortsBefore orders descending by the sort key, descending by id as
// tie-break — the same total order the postgres backend's ORDER BY yields.
func sortsBefore(a, b *models.Discussion, key repository.SortKey) bool {
	at, an := sortValue(a, key)
	bt, bn := sortValue(b, key)
	if key == repository.SortCreatedAt {
		if !at.Equal(bt) {
			return at.After(bt)
		}
	} else if an != bn {
		return an > bn
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

// afterMark reports whether d sorts strictly after the cursor row in the
// descending total order, i.e. belongs to a later page.
func afterMark(d *models.Discussion, mark *repository.PageMark, key repository.SortKey) bool {
	dt, dn := sortValue(d, key)
	if key == repository.SortCreatedAt {
		if !dt.Equal(mark.CreatedAt) {
			return dt.Before(mark.CreatedAt)
		}
	} else if dn != mark.Score {
		return dn < mark.Score
	}
	return bytes.Compare(d.ID[:], mark.ID[:]) < 0
}

func cloneDiscussion(d *models.Discussion) *models.Discussion {
	cp := *d
	cp.Tags = append([]string{}, d.Tags...)
	cp.Votes = append([]models.Vote{}, d.Votes...)
	cp.VoterIDs = append([]uuid.UUID{}, d.VoterIDs...)
	return &cp
}

func cloneReply(r *models.Reply) *models.Reply {
	cp := *r
	cp.Votes = append([]models.Vote{}, r.Votes...)
	cp.VoterIDs = append([]uuid.UUID{}, r.VoterIDs...)
	return &cp
}

// --- interface facades ---

type communityFacade struct{ s *Store }

func (f communityFacade) Create(ctx context.Context, c *models.Community) error {
	return f.s.CreateCommunity(ctx, c)
}
func (f communityFacade) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	return f.s.GetCommunity(ctx, id)
}
func (f communityFacade) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	return f.s.GetCommunityBySlug(ctx, slug)
}
func (f communityFacade) Membership(ctx context.Context, communityID, userID uuid.UUID) (repository.Membership, error) {
	return f.s.Membership(ctx, communityID, userID)
}
func (f communityFacade) AddMember(ctx context.Context, communityID, userID uuid.UUID) error {
	return f.s.AddMember(ctx, communityID, userID)
}

type discussionFacade struct{ s *Store }

func (f discussionFacade) Create(ctx context.Context, d *models.Discussion) error {
	return f.s.CreateDiscussion(ctx, d)
}
func (f discussionFacade) GetByID(ctx context.Context, id uuid.UUID) (*models.Discussion, error) {
	return f.s.GetDiscussion(ctx, id)
}
func (f discussionFacade) List(ctx context.Context, filter repository.DiscussionFilter, page repository.PageRequest) ([]models.Discussion, error) {
	return f.s.List(ctx, filter, page)
}
func (f discussionFacade) ListPinned(ctx context.Context, communityID uuid.UUID, limit int) ([]models.Discussion, error) {
	return f.s.ListPinned(ctx, communityID, limit)
}
func (f discussionFacade) Update(ctx context.Context, d *models.Discussion) error {
	return f.s.UpdateDiscussion(ctx, d)
}
func (f discussionFacade) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	return f.s.IncrementViewCount(ctx, id)
}
func (f discussionFacade) AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int, actor uuid.UUID, at time.Time) error {
	return f.s.AdjustReplyCount(ctx, id, delta, actor, at)
}

type replyFacade struct{ s *Store }

func (f replyFacade) Create(ctx context.Context, r *models.Reply) error {
	return f.s.CreateReply(ctx, r)
}
func (f replyFacade) GetByID(ctx context.Context, id uuid.UUID) (*models.Reply, error) {
	return f.s.GetReply(ctx, id)
}
func (f replyFacade) ListByDiscussion(ctx context.Context, discussionID uuid.UUID, limit int) ([]models.Reply, error) {
	return f.s.ListByDiscussion(ctx, discussionID, limit)
}
func (f replyFacade) Update(ctx context.Context, r *models.Reply) error {
	return f.s.UpdateReply(ctx, r)
}

var (
	_ repository.CommunityRepository  = communityFacade{}
	_ repository.DiscussionRepository = discussionFacade{}
	_ repository.ReplyRepository      = replyFacade{}
)
