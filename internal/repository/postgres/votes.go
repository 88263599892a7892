package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

// VoteStateStore implements the compare-and-swap vote surface over both
// item tables. The version column on the item row is the concurrency
// token: the swap commits only if no other writer bumped it since the
// read, so two racing casts serialize as first-committer-wins.
type VoteStateStore struct {
	pool *pgxpool.Pool
}

func NewVoteStateStore(pool *pgxpool.Pool) *VoteStateStore {
	return &VoteStateStore{pool: pool}
}

var _ repository.VoteStore = (*VoteStateStore)(nil)

func (s *VoteStateStore) GetVoteState(ctx context.Context, item models.ItemType, id uuid.UUID) (*repository.VoteState, error) {
	t, err := tables(item)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT i.version, i.upvote_count, i.downvote_count, i.vote_score, i.status,
		       i.community_id, %s, i.author_id
		FROM %s i
		WHERE i.id = $1`, t.discussionIDExpr, t.items)

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("read vote state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read vote state: %w", err)
		}
		return nil, nil
	}
	var st repository.VoteState
	if err := rows.Scan(
		&st.Version, &st.UpvoteCount, &st.DownvoteCount, &st.VoteScore, &st.Status,
		&st.CommunityID, &st.DiscussionID, &st.AuthorID,
	); err != nil {
		return nil, fmt.Errorf("scan vote state: %w", err)
	}
	rows.Close()

	voteRows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT user_id, vote_type, created_at FROM %s WHERE %s = $1 ORDER BY created_at`,
		t.votes, t.votesFK), id)
	if err != nil {
		return nil, fmt.Errorf("read votes: %w", err)
	}
	defer voteRows.Close()

	st.Votes = make([]models.Vote, 0)
	for voteRows.Next() {
		var v models.Vote
		if err := voteRows.Scan(&v.UserID, &v.Type, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		st.Votes = append(st.Votes, v)
	}
	if err := voteRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return &st, nil
}

// SwapVoteState commits the new vote state in one transaction:
//
//  1. Conditionally update the item's counters, guarded by the version.
//     Zero rows affected means another writer won the race → Conflict.
//  2. Reconcile the actor's vote row. Only the actor's row can differ
//     between the read and the new state, so a delete-then-maybe-insert of
//     that single row brings the votes table in line.
//
// If the transaction aborts nothing is visible — no partially-applied
// vote state, ever.
func (s *VoteStateStore) SwapVoteState(ctx context.Context, item models.ItemType, id uuid.UUID, expectedVersion int64, st *repository.VoteState, actor uuid.UUID, at time.Time) error {
	t, err := tables(item)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vote swap: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET
			upvote_count = $3, downvote_count = $4, vote_score = $5,
			version = version + 1%s
		WHERE id = $1 AND version = $2`, t.items, t.activityCols),
		append([]any{id, expectedVersion, st.UpvoteCount, st.DownvoteCount, st.VoteScore}, t.activityArgs(actor, at)...)...,
	)
	if err != nil {
		return fmt.Errorf("swap vote counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s version moved past %d: %w", item, id, expectedVersion, errs.ErrConflict)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, t.votes, t.votesFK), id, actor); err != nil {
		return fmt.Errorf("clear vote row: %w", err)
	}
	for _, v := range st.Votes {
		if v.UserID != actor {
			continue
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (%s, user_id, vote_type, created_at) VALUES ($1, $2, $3, $4)`,
			t.votes, t.votesFK), id, v.UserID, v.Type, v.CreatedAt); err != nil {
			return fmt.Errorf("insert vote row: %w", err)
		}
		break
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vote swap: %w", err)
	}
	return nil
}

// voteTables carries the per-item-type SQL fragments. Discussions track
// who last acted on them; replies only bump updated_at.
type voteTables struct {
	items            string
	votes            string
	votesFK          string
	discussionIDExpr string
	activityCols     string
	activityArgsFn   func(actor uuid.UUID, at time.Time) []any
}

func (t voteTables) activityArgs(actor uuid.UUID, at time.Time) []any {
	return t.activityArgsFn(actor, at)
}

func tables(item models.ItemType) (voteTables, error) {
	switch item {
	case models.ItemDiscussion:
		return voteTables{
			items:            "discussions",
			votes:            "discussion_votes",
			votesFK:          "discussion_id",
			discussionIDExpr: "i.id",
			activityCols:     ", last_activity_at = $6, last_activity_by = $7",
			activityArgsFn: func(actor uuid.UUID, at time.Time) []any {
				return []any{at, actor}
			},
		}, nil
	case models.ItemReply:
		return voteTables{
			items:            "replies",
			votes:            "reply_votes",
			votesFK:          "reply_id",
			discussionIDExpr: "i.discussion_id",
			activityCols:     ", updated_at = $6",
			activityArgsFn: func(_ uuid.UUID, at time.Time) []any {
				return []any{at}
			},
		}, nil
	default:
		return voteTables{}, fmt.Errorf("unknown item type %q: %w", item, errs.ErrInvalidArgument)
	}
}
