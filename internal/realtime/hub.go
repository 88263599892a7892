package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	pinnedLimit     = 10

	// How long one snapshot re-query may take before we give up on that
	// refresh and wait for the next change.
	snapshotQueryTimeout = 5 * time.Second
)

// Snapshot is one ordered result-set state delivered to a subscriber.
// Seq increases by one per delivery on a given subscription; a consumer
// seeing seq N has seen the effect of every change up to the query behind
// N (coalesced — intermediate states may be skipped, stale ones never).
type Snapshot struct {
	Seq   int64               `json:"seq"`
	Items []models.Discussion `json:"items"`
}

// SubscribeRequest scopes a live subscription. PinnedOnly selects the
// small fully-live pinned stream instead of the paginated window.
type SubscribeRequest struct {
	CommunityID uuid.UUID
	Filter      repository.DiscussionFilter
	Sort        repository.SortKey
	PageSize    int
	PinnedOnly  bool
}

// Subscription is one consumer's live stream. Read Updates until it
// closes; call the hub's Unsubscribe (or cancel the subscribe context) to
// stop. After either, no further snapshots are delivered and all
// per-consumer resources are released.
type Subscription struct {
	id  int64
	req SubscribeRequest

	updates chan Snapshot
	dirty   chan struct{}
	done    chan struct{}
	once    sync.Once
	seq     int64
}

// Updates is the ordered snapshot stream. Closed on unsubscribe.
func (s *Subscription) Updates() <-chan Snapshot { return s.updates }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// markDirty coalesces change signals: a subscription that is already
// pending a refresh absorbs further changes into the same refresh.
func (s *Subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Hub is the subscription registry: it fans change notifications out to
// live subscriptions keyed by community, each of which re-queries its
// window and pushes an ordered snapshot. Decoupled from any storage
// engine — it only sees the DiscussionRepository interface.
type Hub struct {
	discussions repository.DiscussionRepository
	logger      *zap.Logger

	mu     sync.Mutex
	nextID int64
	subs   map[uuid.UUID]map[int64]*Subscription
}

func NewHub(discussions repository.DiscussionRepository, logger *zap.Logger) *Hub {
	return &Hub{
		discussions: discussions,
		logger:      logger,
		subs:        make(map[uuid.UUID]map[int64]*Subscription),
	}
}

var _ engine.Publisher = (*Hub)(nil)

// Subscribe registers a live subscription and starts its delivery
// goroutine. The first snapshot (the current top page) arrives on the
// stream without waiting for a change. Cancelling ctx unsubscribes.
func (h *Hub) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	if req.CommunityID == uuid.Nil {
		return nil, fmt.Errorf("subscribe: missing community id")
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	if req.Sort == "" {
		req.Sort = repository.SortCreatedAt
	}
	req.Filter.CommunityID = req.CommunityID

	h.mu.Lock()
	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		req:     req,
		updates: make(chan Snapshot, 1),
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	byCommunity, ok := h.subs[req.CommunityID]
	if !ok {
		byCommunity = make(map[int64]*Subscription)
		h.subs[req.CommunityID] = byCommunity
	}
	byCommunity[sub.id] = sub
	h.mu.Unlock()

	sub.markDirty() // initial page
	go h.deliver(ctx, sub)
	return sub, nil
}

// Unsubscribe stops delivery and releases the subscription's resources.
// Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if byCommunity, ok := h.subs[sub.req.CommunityID]; ok {
		delete(byCommunity, sub.id)
		if len(byCommunity) == 0 {
			delete(h.subs, sub.req.CommunityID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish routes a change to every subscription watching its community.
// Non-blocking: it only flips dirty bits; delivery goroutines do the work.
func (h *Hub) Publish(change engine.Change) {
	h.mu.Lock()
	byCommunity := h.subs[change.CommunityID]
	pending := make([]*Subscription, 0, len(byCommunity))
	for _, sub := range byCommunity {
		pending = append(pending, sub)
	}
	h.mu.Unlock()

	for _, sub := range pending {
		sub.markDirty()
	}
}

// deliver is the per-subscription loop: one goroutine, strictly ordered
// sends, closed channel on exit. Delivery never goes backwards because
// each snapshot is re-queried after the change that triggered it.
func (h *Hub) deliver(ctx context.Context, sub *Subscription) {
	defer close(sub.updates)
	defer h.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-sub.dirty:
			items, err := h.queryWindow(sub.req)
			if err != nil {
				h.logger.Warn("subscription refresh failed",
					zap.Error(err),
					zap.Int64("subscription_id", sub.id),
				)
				continue
			}
			sub.seq++
			snap := Snapshot{Seq: sub.seq, Items: items}
			select {
			case sub.updates <- snap:
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) queryWindow(req SubscribeRequest) ([]models.Discussion, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotQueryTimeout)
	defer cancel()

	if req.PinnedOnly {
		return h.discussions.ListPinned(ctx, req.CommunityID, pinnedLimit)
	}
	return h.discussions.List(ctx, req.Filter, repository.PageRequest{
		Sort:  req.Sort,
		Limit: req.PageSize,
	})
}

// Page is one load-more result: the rows plus the cursor for the page
// after them. NextCursor is empty when the set is exhausted.
type Page struct {
	Items      []models.Discussion `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// LoadMore is the one-shot cursor extension of a subscribed result set.
// cursor == "" starts from the top. The cursor pins (sort value, id), so
// concurrent inserts or deletes before the cursor never duplicate or drop
// rows after it. An empty page signals completion.
func (h *Hub) LoadMore(ctx context.Context, filter repository.DiscussionFilter, sort repository.SortKey, cursor string, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if sort == "" {
		sort = repository.SortCreatedAt
	}

	var after *repository.PageMark
	if cursor != "" {
		cursorSort, mark, err := DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("load more: %w", err)
		}
		// The cursor's sort wins: mixing sorts across pages would break
		// the no-dup/no-gap guarantee.
		sort = cursorSort
		after = mark
	}

	items, err := h.discussions.List(ctx, filter, repository.PageRequest{
		Sort:  sort,
		Limit: pageSize,
		After: after,
	})
	if err != nil {
		return nil, fmt.Errorf("load more: %w", err)
	}

	page := &Page{Items: items}
	if len(items) == pageSize {
		last := items[len(items)-1]
		score := int64(last.VoteScore)
		if sort == repository.SortReplyCount {
			score = int64(last.ReplyCount)
		}
		page.NextCursor = EncodeCursor(sort, MarkFor(sort, last.CreatedAt, score, last.ID))
	}
	return page, nil
}
