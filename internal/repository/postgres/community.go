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

type CommunityStore struct {
	pool *pgxpool.Pool
}

func NewCommunityStore(pool *pgxpool.Pool) *CommunityStore {
	return &CommunityStore{pool: pool}
}

var _ repository.CommunityRepository = (*CommunityStore)(nil)

const communityColumns = `id, slug, name, member_count, owner_id, admin_ids, moderator_ids, is_archived, created_at`

func (s *CommunityStore) Create(ctx context.Context, c *models.Community) error {
	query := `
		INSERT INTO communities (id, slug, name, member_count, owner_id, admin_ids, moderator_ids, is_archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	batch.Queue(query,
		c.ID, c.Slug, c.Name, c.MemberCount, c.OwnerID,
		c.AdminIDs, c.ModeratorIDs, c.IsArchived, c.CreatedAt,
	)
	// The owner joins their own community atomically with its creation.
	batch.Queue(`INSERT INTO community_members (community_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		c.ID, c.OwnerID, c.CreatedAt,
	)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert community: %w", err)
		}
	}
	return nil
}

func (s *CommunityStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	return s.get(ctx, `SELECT `+communityColumns+` FROM communities WHERE id = $1`, id)
}

func (s *CommunityStore) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	return s.get(ctx, `SELECT `+communityColumns+` FROM communities WHERE slug = $1`, slug)
}

func (s *CommunityStore) get(ctx context.Context, query string, arg any) (*models.Community, error) {
	var c models.Community
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.Slug,
		&c.Name,
		&c.MemberCount,
		&c.OwnerID,
		&c.AdminIDs,
		&c.ModeratorIDs,
		&c.IsArchived,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get community: %w", err)
	}
	return &c, nil
}

func (s *CommunityStore) Membership(ctx context.Context, communityID, userID uuid.UUID) (repository.Membership, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM community_members WHERE community_id = $1 AND user_id = $2),
			owner_id = $2,
			$2 = ANY (admin_ids),
			$2 = ANY (moderator_ids)
		FROM communities
		WHERE id = $1`

	var m repository.Membership
	err := s.pool.QueryRow(ctx, query, communityID, userID).Scan(
		&m.IsMember,
		&m.IsOwner,
		&m.IsAdmin,
		&m.IsModerator,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Membership{}, nil
		}
		return repository.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *CommunityStore) AddMember(ctx context.Context, communityID, userID uuid.UUID) error {
	// ON CONFLICT DO NOTHING makes the join idempotent; the member counter
	// only moves when a row was actually inserted.
	query := `
		WITH ins AS (
			INSERT INTO community_members (community_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		UPDATE communities
		SET member_count = member_count + (SELECT count(*) FROM ins)
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, communityID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}
