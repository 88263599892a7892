package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

// ChangeKind classifies a change event pushed to the realtime layer.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeVoted   ChangeKind = "voted"
)

// Change is what a successful write publishes. The realtime hub matches it
// against subscription windows; the payload is the item id, not the item —
// subscribers re-read through their own snapshot path.
type Change struct {
	Kind         ChangeKind      `json:"kind"`
	Item         models.ItemType `json:"item"`
	ItemID       uuid.UUID       `json:"item_id"`
	CommunityID  uuid.UUID       `json:"community_id"`
	DiscussionID uuid.UUID       `json:"discussion_id"`
	At           time.Time       `json:"at"`
}

// Publisher fans a change out to live subscribers. Publish must not block
// the writer; implementations buffer or drop-and-log.
type Publisher interface {
	Publish(change Change)
}

// Notification is a fire-and-forget event for the external dispatcher.
type Notification struct {
	Kind         string          `json:"kind"`
	Item         models.ItemType `json:"item"`
	ItemID       uuid.UUID       `json:"item_id"`
	RecipientID  uuid.UUID       `json:"recipient_id"`
	ActorID      uuid.UUID       `json:"actor_id"`
	CommunityID  uuid.UUID       `json:"community_id"`
	DiscussionID uuid.UUID       `json:"discussion_id"`
}

// Notifier delivers notifications best-effort. A failed delivery must never
// fail the write that triggered it, so Notify returns nothing.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// ActivityRecorder is the analytics aggregator's intake. Record is
// at-most-once per logical event; the aggregator's upserts keep duplicates
// from double-counting where the storage layer allows it.
type ActivityRecorder interface {
	Record(ctx context.Context, communityID uuid.UUID, event models.EventType, tags []string, at time.Time)
}

// RoleService is the external membership/roles boundary. The engine never
// inspects community role sets directly; it asks this interface, which the
// community store (or a remote service client) implements.
type RoleService interface {
	Membership(ctx context.Context, communityID, userID uuid.UUID) (repository.Membership, error)
}
