package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/models"
)

// Every method takes a context.Context first: all of these touch the
// network (or pretend to, in the memory backend), and the caller's deadline
// has to flow through.

// SortKey selects the listing order for discussions. All sorts are
// descending with ID as tie-break so keyset cursors stay total.
type SortKey string

const (
	SortCreatedAt  SortKey = "created_at"
	SortVoteScore  SortKey = "vote_score"
	SortReplyCount SortKey = "reply_count"
)

// PageMark pins the last row of the previous page. Which field carries the
// sort value depends on the sort key: CreatedAt for created_at, Score for
// vote_score and reply_count. ID breaks ties so two rows with equal sort
// values can never straddle a page boundary ambiguously.
type PageMark struct {
	CreatedAt time.Time `json:"created_at,omitempty"`
	Score     int64     `json:"score,omitempty"`
	ID        uuid.UUID `json:"id"`
}

// PageRequest is a keyset-paginated read. After == nil means first page.
type PageRequest struct {
	Sort  SortKey
	Limit int
	After *PageMark
}

// DiscussionFilter scopes a discussion listing. Zero values mean "don't
// filter on this". Deleted rows are always excluded unless IncludeDeleted.
type DiscussionFilter struct {
	CommunityID    uuid.UUID
	Category       models.DiscussionCategory
	Status         models.Status
	Tag            string
	IncludeDeleted bool
}

// VoteState is the transactional slice of an item: the vote set, the
// derived counters, and the OCC version guarding them. Everything the vote
// processor reads and writes in one compare-and-swap cycle. The identity
// fields (CommunityID, DiscussionID, AuthorID) ride along read-only so the
// processor can route events without a second lookup.
type VoteState struct {
	Version       int64
	Votes         []models.Vote
	UpvoteCount   int
	DownvoteCount int
	VoteScore     int
	Status        models.Status

	CommunityID  uuid.UUID
	DiscussionID uuid.UUID
	AuthorID     uuid.UUID
}

// Clone returns a deep copy so a retry loop can mutate freely.
func (s *VoteState) Clone() *VoteState {
	c := *s
	c.Votes = make([]models.Vote, len(s.Votes))
	copy(c.Votes, s.Votes)
	return &c
}

// VoterIDs derives the voter set from the vote list. The two are kept in
// lockstep by construction, so this is the single source of truth.
func (s *VoteState) VoterIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Votes))
	for _, v := range s.Votes {
		ids = append(ids, v.UserID)
	}
	return ids
}

// CommunityRepository handles community records and role lookups.
type CommunityRepository interface {
	Create(ctx context.Context, c *models.Community) error

	// GetByID returns nil, nil if the community does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error)

	GetBySlug(ctx context.Context, slug string) (*models.Community, error)

	// Membership reports the caller's standing in a community. Hot-path
	// check — runs before every moderation action.
	Membership(ctx context.Context, communityID, userID uuid.UUID) (Membership, error)

	AddMember(ctx context.Context, communityID, userID uuid.UUID) error
}

// Membership is the role snapshot the lifecycle manager authorizes against.
type Membership struct {
	IsMember    bool
	IsModerator bool
	IsAdmin     bool
	IsOwner     bool
}

// CanModerate reports whether the roles allow pin/lock/feature/delete of
// other users' content.
func (m Membership) CanModerate() bool {
	return m.IsModerator || m.IsAdmin || m.IsOwner
}

// DiscussionRepository handles discussion persistence.
type DiscussionRepository interface {
	Create(ctx context.Context, d *models.Discussion) error

	// GetByID returns nil, nil if not found. Tombstoned rows ARE returned —
	// visibility policy belongs to the engine, not the store.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Discussion, error)

	// List returns one keyset page. Results ordered by page.Sort descending,
	// ID descending as tie-break.
	List(ctx context.Context, filter DiscussionFilter, page PageRequest) ([]models.Discussion, error)

	// ListPinned returns the pinned set for a community, newest first,
	// capped at limit. Pinned sets are small; no cursor.
	ListPinned(ctx context.Context, communityID uuid.UUID, limit int) ([]models.Discussion, error)

	// Update writes the metadata fields (title, content, tags, status,
	// flags, edit/delete stamps). Vote state is NOT written here — that
	// goes through SwapVoteState only.
	Update(ctx context.Context, d *models.Discussion) error

	IncrementViewCount(ctx context.Context, id uuid.UUID) error

	// AdjustReplyCount moves the derived reply counter and bumps
	// last_activity. delta may be negative.
	AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int, actor uuid.UUID, at time.Time) error
}

// ReplyRepository handles reply persistence.
type ReplyRepository interface {
	Create(ctx context.Context, r *models.Reply) error

	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reply, error)

	// ListByDiscussion returns replies in creation order (ascending), the
	// order the tree builder expects. Tombstoned replies are included so
	// threads keep their shape; the caller blanks content.
	ListByDiscussion(ctx context.Context, discussionID uuid.UUID, limit int) ([]models.Reply, error)

	Update(ctx context.Context, r *models.Reply) error
}

// VoteStore is the compare-and-swap surface the vote processor runs on.
// One implementation covers both item kinds so the processor doesn't
// branch on storage details.
type VoteStore interface {
	// GetVoteState reads the current vote state and its version.
	// Returns nil, nil when the item does not exist.
	GetVoteState(ctx context.Context, item models.ItemType, id uuid.UUID) (*VoteState, error)

	// SwapVoteState writes st if and only if the stored version still
	// equals expectedVersion, bumping the version and last-activity stamps.
	// Returns errs.ErrConflict (wrapped) when another writer got there
	// first.
	SwapVoteState(ctx context.Context, item models.ItemType, id uuid.UUID, expectedVersion int64, st *VoteState, actor uuid.UUID, at time.Time) error
}

// AnalyticsRepository persists time-bucketed aggregates.
type AnalyticsRepository interface {
	// UpsertBucket folds one event occurrence into the bucket identified by
	// (communityID, periodType, periodStart), creating it if absent. The
	// write is additive and idempotent per counter column.
	UpsertBucket(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, periodStart, periodEnd time.Time, event models.EventType, tags []string) error

	// ListBuckets returns buckets for the half-open range [from, to),
	// ordered by period start ascending.
	ListBuckets(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, from, to time.Time) ([]models.AnalyticsBucket, error)
}
