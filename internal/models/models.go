package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteType is the direction of a vote. Exactly two values; everything else
// is rejected at the handler layer.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Opposite returns the other vote direction.
func (v VoteType) Opposite() VoteType {
	if v == VoteUp {
		return VoteDown
	}
	return VoteUp
}

// Valid reports whether v is one of the two known directions.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// ItemType distinguishes the two votable record kinds.
type ItemType string

const (
	ItemDiscussion ItemType = "discussion"
	ItemReply      ItemType = "reply"
)

// Status is the discussion/reply lifecycle state. The four values are
// mutually exclusive; deleted is a tombstone, never a hard delete.
type Status string

const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// DiscussionCategory is a fixed enum; validated at the handler layer.
type DiscussionCategory string

const (
	CategoryGeneral      DiscussionCategory = "general"
	CategoryQuestion     DiscussionCategory = "question"
	CategoryAnnouncement DiscussionCategory = "announcement"
	CategoryShowcase     DiscussionCategory = "showcase"
)

// AuthorInfo is a point-in-time snapshot of the author's identity, copied
// from the identity provider's claims when the record is created. It is
// never refreshed — renames after the fact don't rewrite history.
type AuthorInfo struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Vote is one user's vote on one item. Embedded in the item's vote set,
// never shared: at most one Vote per (item, user).
type Vote struct {
	UserID    uuid.UUID `json:"user_id"`
	Type      VoteType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Community is the ownership boundary for discussions. Role sets live here;
// the engine consults them through the RoleService interface, not by
// reaching into these slices.
type Community struct {
	ID           uuid.UUID   `json:"id"`
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	MemberCount  int         `json:"member_count"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	AdminIDs     []uuid.UUID `json:"admin_ids"`
	ModeratorIDs []uuid.UUID `json:"moderator_ids"`
	IsArchived   bool        `json:"is_archived"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Discussion is a top-level threaded post within a community.
//
// Vote counters are derived state kept consistent by the vote processor:
// UpvoteCount - DownvoteCount == VoteScore and len(Votes) == len(VoterIDs)
// always hold, with no two Votes sharing a UserID. Version is the OCC token —
// every vote-state write bumps it, and a compare-and-swap against a stale
// version fails with a conflict instead of losing an update.
type Discussion struct {
	ID          uuid.UUID          `json:"id"`
	CommunityID uuid.UUID          `json:"community_id"`
	AuthorID    uuid.UUID          `json:"author_id"`
	AuthorInfo  AuthorInfo         `json:"author_info"`
	Title       string             `json:"title"`
	Slug        string             `json:"slug"`
	Content     string             `json:"content"`
	Category    DiscussionCategory `json:"category"`
	Tags        []string           `json:"tags"`
	Status      Status             `json:"status"`

	IsPinned   bool `json:"is_pinned"`
	IsLocked   bool `json:"is_locked"`
	IsFeatured bool `json:"is_featured"`

	VoteScore     int         `json:"vote_score"`
	UpvoteCount   int         `json:"upvote_count"`
	DownvoteCount int         `json:"downvote_count"`
	Votes         []Vote      `json:"votes"`
	VoterIDs      []uuid.UUID `json:"voter_ids"`

	ReplyCount int   `json:"reply_count"`
	ViewCount  int64 `json:"view_count"`
	Version    int64 `json:"-"`

	IsEdited bool       `json:"is_edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
	EditedBy *uuid.UUID `json:"edited_by,omitempty"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	LastActivityBy *uuid.UUID `json:"last_activity_by,omitempty"`
}

// Reply is a comment attached to a discussion, or to another reply when
// ParentReplyID is set. Replies form a forest rooted at the discussion.
//
// Depth is a rendering hint only (0 for top-level, parent.Depth+1 below);
// the tree builder works purely from ParentReplyID. A ParentReplyID that
// points outside the owning discussion is data corruption, not an input the
// engine tolerates — reply creation enforces it.
type Reply struct {
	ID            uuid.UUID  `json:"id"`
	DiscussionID  uuid.UUID  `json:"discussion_id"`
	CommunityID   uuid.UUID  `json:"community_id"`
	AuthorID      uuid.UUID  `json:"author_id"`
	AuthorInfo    AuthorInfo `json:"author_info"`
	Content       string     `json:"content"`
	ParentReplyID *uuid.UUID `json:"parent_reply_id,omitempty"`
	Depth         int        `json:"depth"`

	VoteScore     int         `json:"vote_score"`
	UpvoteCount   int         `json:"upvote_count"`
	DownvoteCount int         `json:"downvote_count"`
	Votes         []Vote      `json:"votes"`
	VoterIDs      []uuid.UUID `json:"voter_ids"`

	Status   Status `json:"status"`
	Version  int64  `json:"-"`
	IsEdited bool   `json:"is_edited"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PeriodType selects the analytics bucket width.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// EventType is an activity event folded into analytics buckets.
type EventType string

const (
	EventDiscussionCreated EventType = "discussion_created"
	EventReplyCreated      EventType = "reply_created"
	EventVoteCast          EventType = "vote_cast"
	EventMemberJoined      EventType = "member_joined"
)

// TagTrend is one ranked entry in a bucket's emerging-tags list.
type TagTrend struct {
	Tag        string  `json:"tag"`
	TrendScore float64 `json:"trend_score"`
}

// AnalyticsBucket is a fixed time-window aggregate of one community's
// activity. Exactly one bucket exists per (community, period type, period
// start); the aggregator upserts it as events arrive and nothing else
// writes it.
type AnalyticsBucket struct {
	CommunityID      uuid.UUID        `json:"community_id"`
	PeriodType       PeriodType       `json:"period_type"`
	PeriodStart      time.Time        `json:"period_start"`
	PeriodEnd        time.Time        `json:"period_end"`
	NewMembersCount  int64            `json:"new_members_count"`
	TotalMessages    int64            `json:"total_messages"`
	TotalDiscussions int64            `json:"total_discussions"`
	TagCounts        map[string]int64 `json:"tag_counts,omitempty"`
	EmergingTags     []TagTrend       `json:"emerging_tags"`
}
