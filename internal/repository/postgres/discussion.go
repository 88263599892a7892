package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

type DiscussionStore struct {
	pool *pgxpool.Pool
}

func NewDiscussionStore(pool *pgxpool.Pool) *DiscussionStore {
	return &DiscussionStore{pool: pool}
}

var _ repository.DiscussionRepository = (*DiscussionStore)(nil)

const discussionColumns = `
	id, community_id, author_id, author_name, author_photo, author_role,
	title, slug, content, category, tags, status,
	is_pinned, is_locked, is_featured,
	vote_score, upvote_count, downvote_count, reply_count, view_count, version,
	is_edited, edited_at, edited_by, deleted_at, deleted_by,
	created_at, updated_at, last_activity_at, last_activity_by`

func (s *DiscussionStore) Create(ctx context.Context, d *models.Discussion) error {
	query := `
		INSERT INTO discussions (
			id, community_id, author_id, author_name, author_photo, author_role,
			title, slug, content, category, tags, status,
			created_at, updated_at, last_activity_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.CommunityID, d.AuthorID,
		d.AuthorInfo.DisplayName, d.AuthorInfo.PhotoURL, d.AuthorInfo.Role,
		d.Title, d.Slug, d.Content, d.Category, d.Tags, d.Status,
		d.CreatedAt, d.UpdatedAt, d.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("insert discussion: %w", err)
	}
	return nil
}

func (s *DiscussionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Discussion, error) {
	query := `SELECT ` + discussionColumns + ` FROM discussions WHERE id = $1`

	var d models.Discussion
	err := s.pool.QueryRow(ctx, query, id).Scan(scanDiscussionDest(&d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get discussion: %w", err)
	}

	votes, err := s.loadVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	attachVotes(&d, votes)
	return &d, nil
}

func (s *DiscussionStore) loadVotes(ctx context.Context, id uuid.UUID) ([]models.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, vote_type, created_at FROM discussion_votes WHERE discussion_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("load discussion votes: %w", err)
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

// List runs the filtered, keyset-paginated listing. The cursor predicate
// compares (sort value, id) as a pair so concurrent inserts before the
// cursor can't duplicate or drop rows after it.
func (s *DiscussionStore) List(ctx context.Context, filter repository.DiscussionFilter, page repository.PageRequest) ([]models.Discussion, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 7)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDeleted {
		where = append(where, "status <> 'deleted'")
	}
	if filter.CommunityID != uuid.Nil {
		where = append(where, "community_id = "+arg(filter.CommunityID))
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Tag != "" {
		where = append(where, arg(filter.Tag)+" = ANY (tags)")
	}

	sortCol := sortColumn(page.Sort)
	if page.After != nil {
		if page.Sort == repository.SortCreatedAt {
			where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)",
				arg(page.After.CreatedAt), arg(page.After.ID)))
		} else {
			where = append(where, fmt.Sprintf("(%s, id) < (%s, %s)",
				sortCol, arg(page.After.Score), arg(page.After.ID)))
		}
	}

	query := `SELECT ` + discussionColumns + ` FROM discussions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s DESC, id DESC LIMIT %s", sortCol, arg(page.Limit))

	return s.queryMany(ctx, query, args...)
}

func (s *DiscussionStore) ListPinned(ctx context.Context, communityID uuid.UUID, limit int) ([]models.Discussion, error) {
	query := `SELECT ` + discussionColumns + `
		FROM discussions
		WHERE community_id = $1 AND is_pinned AND status <> 'deleted'
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	return s.queryMany(ctx, query, communityID, limit)
}

func (s *DiscussionStore) queryMany(ctx context.Context, query string, args ...any) ([]models.Discussion, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Discussion, 0)
	for rows.Next() {
		var d models.Discussion
		if err := rows.Scan(scanDiscussionDest(&d)...); err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		// Listings carry counters only; full vote sets load on point reads.
		d.Votes = []models.Vote{}
		d.VoterIDs = []uuid.UUID{}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discussions: %w", err)
	}
	return out, nil
}

// Update writes metadata fields. Vote counters and version are deliberately
// absent — those move only through the VoteStore swap.
func (s *DiscussionStore) Update(ctx context.Context, d *models.Discussion) error {
	query := `
		UPDATE discussions SET
			title = $2, slug = $3, content = $4, category = $5, tags = $6,
			status = $7, is_pinned = $8, is_locked = $9, is_featured = $10,
			is_edited = $11, edited_at = $12, edited_by = $13,
			deleted_at = $14, deleted_by = $15, updated_at = $16
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		d.ID, d.Title, d.Slug, d.Content, d.Category, d.Tags,
		d.Status, d.IsPinned, d.IsLocked, d.IsFeatured,
		d.IsEdited, d.EditedAt, d.EditedBy,
		d.DeletedAt, d.DeletedBy, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update discussion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update discussion: %s not found", d.ID)
	}
	return nil
}

func (s *DiscussionStore) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE discussions SET view_count = view_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

func (s *DiscussionStore) AdjustReplyCount(ctx context.Context, id uuid.UUID, delta int, actor uuid.UUID, at time.Time) error {
	query := `
		UPDATE discussions
		SET reply_count = reply_count + $2, last_activity_at = $3, last_activity_by = $4
		WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, delta, at, actor); err != nil {
		return fmt.Errorf("adjust reply count: %w", err)
	}
	return nil
}

func sortColumn(key repository.SortKey) string {
	switch key {
	case repository.SortVoteScore:
		return "vote_score"
	case repository.SortReplyCount:
		return "reply_count"
	default:
		return "created_at"
	}
}

func scanDiscussionDest(d *models.Discussion) []any {
	return []any{
		&d.ID, &d.CommunityID, &d.AuthorID,
		&d.AuthorInfo.DisplayName, &d.AuthorInfo.PhotoURL, &d.AuthorInfo.Role,
		&d.Title, &d.Slug, &d.Content, &d.Category, &d.Tags, &d.Status,
		&d.IsPinned, &d.IsLocked, &d.IsFeatured,
		&d.VoteScore, &d.UpvoteCount, &d.DownvoteCount, &d.ReplyCount, &d.ViewCount, &d.Version,
		&d.IsEdited, &d.EditedAt, &d.EditedBy, &d.DeletedAt, &d.DeletedBy,
		&d.CreatedAt, &d.UpdatedAt, &d.LastActivityAt, &d.LastActivityBy,
	}
}

func attachVotes(d *models.Discussion, votes []models.Vote) {
	d.Votes = votes
	d.VoterIDs = make([]uuid.UUID, 0, len(votes))
	for _, v := range votes {
		d.VoterIDs = append(d.VoterIDs, v.UserID)
	}
}
