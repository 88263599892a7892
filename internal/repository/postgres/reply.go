package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

type ReplyStore struct {
	pool *pgxpool.Pool
}

func NewReplyStore(pool *pgxpool.Pool) *ReplyStore {
	return &ReplyStore{pool: pool}
}

var _ repository.ReplyRepository = (*ReplyStore)(nil)

const replyColumns = `
	id, discussion_id, community_id, author_id, author_name, author_photo, author_role,
	content, parent_reply_id, depth,
	vote_score, upvote_count, downvote_count,
	status, version, is_edited, created_at, updated_at`

func (s *ReplyStore) Create(ctx context.Context, r *models.Reply) error {
	query := `
		INSERT INTO replies (
			id, discussion_id, community_id, author_id, author_name, author_photo, author_role,
			content, parent_reply_id, depth, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.DiscussionID, r.CommunityID, r.AuthorID,
		r.AuthorInfo.DisplayName, r.AuthorInfo.PhotoURL, r.AuthorInfo.Role,
		r.Content, r.ParentReplyID, r.Depth, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

func (s *ReplyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies WHERE id = $1`

	var r models.Reply
	err := s.pool.QueryRow(ctx, query, id).Scan(scanReplyDest(&r)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reply: %w", err)
	}

	votes, err := s.loadVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Votes = votes
	r.VoterIDs = make([]uuid.UUID, 0, len(votes))
	for _, v := range votes {
		r.VoterIDs = append(r.VoterIDs, v.UserID)
	}
	return &r, nil
}

// ListByDiscussion returns the full flat reply set in creation order —
// the input the tree builder expects. Tombstones are included so threads
// keep their shape.
func (s *ReplyStore) ListByDiscussion(ctx context.Context, discussionID uuid.UUID, limit int) ([]models.Reply, error) {
	query := `SELECT ` + replyColumns + `
		FROM replies
		WHERE discussion_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, discussionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	out := make([]models.Reply, 0)
	for rows.Next() {
		var r models.Reply
		if err := rows.Scan(scanReplyDest(&r)...); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		r.Votes = []models.Vote{}
		r.VoterIDs = []uuid.UUID{}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return out, nil
}

func (s *ReplyStore) Update(ctx context.Context, r *models.Reply) error {
	query := `
		UPDATE replies SET
			content = $2, status = $3, is_edited = $4, updated_at = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, r.ID, r.Content, r.Status, r.IsEdited, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update reply: %s not found", r.ID)
	}
	return nil
}

func (s *ReplyStore) loadVotes(ctx context.Context, id uuid.UUID) ([]models.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, vote_type, created_at FROM reply_votes WHERE reply_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("load reply votes: %w", err)
	}
	defer rows.Close()

	votes := make([]models.Vote, 0)
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.UserID, &v.Type, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

func scanReplyDest(r *models.Reply) []any {
	return []any{
		&r.ID, &r.DiscussionID, &r.CommunityID, &r.AuthorID,
		&r.AuthorInfo.DisplayName, &r.AuthorInfo.PhotoURL, &r.AuthorInfo.Role,
		&r.Content, &r.ParentReplyID, &r.Depth,
		&r.VoteScore, &r.UpvoteCount, &r.DownvoteCount,
		&r.Status, &r.Version, &r.IsEdited, &r.CreatedAt, &r.UpdatedAt,
	}
}
