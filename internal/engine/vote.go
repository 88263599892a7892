package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
	"go.uber.org/zap"
)

// Retry budget for the compare-and-swap loop. Contention on a single hot
// item resolves within a few attempts; past that we surface Unavailable
// instead of spinning.
const (
	voteMaxAttempts = 5
	voteBackoffBase = 10 * time.Millisecond
)

// VoteOutcome describes what a cast did to the user's existing vote.
type VoteOutcome string

const (
	// OutcomeAdded: no prior vote existed; one was recorded.
	OutcomeAdded VoteOutcome = "added"
	// OutcomeRetracted: the prior vote had the same type; it was removed.
	OutcomeRetracted VoteOutcome = "retracted"
	// OutcomeSwitched: the prior vote had the opposite type; its type was
	// replaced in place.
	OutcomeSwitched VoteOutcome = "switched"
)

// VoteResult is the authoritative post-transaction state the caller
// reconciles its optimistic local delta against.
type VoteResult struct {
	Outcome       VoteOutcome `json:"outcome"`
	VoteScore     int         `json:"vote_score"`
	UpvoteCount   int         `json:"upvote_count"`
	DownvoteCount int         `json:"downvote_count"`
}

// VoteProcessor enforces the one-vote-per-user invariant. All vote writes
// in the system go through CastVote; nothing else touches vote state.
type VoteProcessor struct {
	store     repository.VoteStore
	recorder  ActivityRecorder
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewVoteProcessor(store repository.VoteStore, recorder ActivityRecorder, notifier Notifier, publisher Publisher, logger *zap.Logger) *VoteProcessor {
	return &VoteProcessor{
		store:     store,
		recorder:  recorder,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// CastVote applies one user's vote to one item.
//
// Semantics: no prior vote → add; same-type prior vote → retract;
// opposite-type prior vote → switch (net two-count movement). The
// read-modify-write runs as an optimistic transaction: read state with its
// version, mutate a copy, swap it back iff the version is unchanged.
// First committer wins; losers retry with jittered backoff up to the
// budget, then surface Unavailable. No caller ever observes a
// partially-applied vote.
func (p *VoteProcessor) CastVote(ctx context.Context, item models.ItemType, itemID, userID uuid.UUID, voteType models.VoteType) (*VoteResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("cast vote: anonymous caller: %w", errs.ErrUnauthorized)
	}
	if !voteType.Valid() {
		return nil, fmt.Errorf("cast vote: unknown vote type %q: %w", voteType, errs.ErrInvalidArgument)
	}

	for attempt := 0; attempt < voteMaxAttempts; attempt++ {
		if attempt > 0 {
			// Jittered backoff: base << attempt, scaled by [0.5, 1.0).
			d := voteBackoffBase << (attempt - 1)
			d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
			if err := p.sleep(ctx, d); err != nil {
				return nil, fmt.Errorf("cast vote: %w", err)
			}
		}

		st, err := p.store.GetVoteState(ctx, item, itemID)
		if err != nil {
			return nil, fmt.Errorf("cast vote: read state: %w", err)
		}
		if st == nil || st.Status == models.StatusDeleted {
			return nil, fmt.Errorf("cast vote: %s %s: %w", item, itemID, errs.ErrNotFound)
		}
		if st.Status != models.StatusActive {
			return nil, fmt.Errorf("cast vote: %s is %s: %w", item, st.Status, errs.ErrLocked)
		}

		now := p.now().UTC()
		next := st.Clone()
		outcome := applyVote(next, userID, voteType, now)

		err = p.store.SwapVoteState(ctx, item, itemID, st.Version, next, userID, now)
		if errors.Is(err, errs.ErrConflict) {
			p.logger.Debug("vote swap conflict, retrying",
				zap.String("item", string(item)),
				zap.String("item_id", itemID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cast vote: swap state: %w", err)
		}

		p.afterCast(ctx, item, itemID, userID, st, outcome, now)
		return &VoteResult{
			Outcome:       outcome,
			VoteScore:     next.VoteScore,
			UpvoteCount:   next.UpvoteCount,
			DownvoteCount: next.DownvoteCount,
		}, nil
	}

	return nil, fmt.Errorf("cast vote: retry budget exhausted after %d attempts: %w", voteMaxAttempts, errs.ErrUnavailable)
}

// afterCast runs the non-transactional side effects. None of them may fail
// the vote — the swap already committed.
func (p *VoteProcessor) afterCast(ctx context.Context, item models.ItemType, itemID, userID uuid.UUID, st *repository.VoteState, outcome VoteOutcome, at time.Time) {
	if p.recorder != nil {
		p.recorder.Record(ctx, st.CommunityID, models.EventVoteCast, nil, at)
	}
	if p.publisher != nil {
		p.publisher.Publish(Change{
			Kind:         ChangeVoted,
			Item:         item,
			ItemID:       itemID,
			CommunityID:  st.CommunityID,
			DiscussionID: st.DiscussionID,
			At:           at,
		})
	}
	// Only a fresh vote notifies the author; retractions and switches stay
	// quiet. Self-votes never notify.
	if p.notifier != nil && outcome == OutcomeAdded && st.AuthorID != userID {
		p.notifier.Notify(ctx, Notification{
			Kind:         "vote_received",
			Item:         item,
			ItemID:       itemID,
			RecipientID:  st.AuthorID,
			ActorID:      userID,
			CommunityID:  st.CommunityID,
			DiscussionID: st.DiscussionID,
		})
	}
}

// applyVote mutates st with one user's cast and reports the outcome. Pure
// with respect to everything but st; the invariants
// (up - down == score, one vote per user) hold on exit whenever they held
// on entry.
func applyVote(st *repository.VoteState, userID uuid.UUID, voteType models.VoteType, at time.Time) VoteOutcome {
	idx := -1
	for i, v := range st.Votes {
		if v.UserID == userID {
			idx = i
			break
		}
	}

	var outcome VoteOutcome
	switch {
	case idx < 0:
		st.Votes = append(st.Votes, models.Vote{UserID: userID, Type: voteType, CreatedAt: at})
		bumpCounter(st, voteType, 1)
		outcome = OutcomeAdded

	case st.Votes[idx].Type == voteType:
		bumpCounter(st, voteType, -1)
		st.Votes = append(st.Votes[:idx], st.Votes[idx+1:]...)
		outcome = OutcomeRetracted

	default:
		bumpCounter(st, st.Votes[idx].Type, -1)
		bumpCounter(st, voteType, 1)
		st.Votes[idx].Type = voteType
		st.Votes[idx].CreatedAt = at
		outcome = OutcomeSwitched
	}

	st.VoteScore = st.UpvoteCount - st.DownvoteCount
	return outcome
}

func bumpCounter(st *repository.VoteState, voteType models.VoteType, delta int) {
	if voteType == models.VoteUp {
		st.UpvoteCount += delta
	} else {
		st.DownvoteCount += delta
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
