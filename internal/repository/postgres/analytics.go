package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
)

type AnalyticsStore struct {
	pool *pgxpool.Pool
}

func NewAnalyticsStore(pool *pgxpool.Pool) *AnalyticsStore {
	return &AnalyticsStore{pool: pool}
}

var _ repository.AnalyticsRepository = (*AnalyticsStore)(nil)

// UpsertBucket folds one event into its bucket with a single
// INSERT ... ON CONFLICT DO UPDATE keyed by (community, period type,
// period start). Counter deltas are additive and commutative, so
// concurrent recorders never need coordination; a duplicate recording of
// the same logical event is the caller's to avoid, but the keying keeps
// even that from corrupting other buckets.
func (s *AnalyticsStore) UpsertBucket(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, periodStart, periodEnd time.Time, event models.EventType, tags []string) error {
	var members, messages, discussions int64
	switch event {
	case models.EventDiscussionCreated:
		discussions, messages = 1, 1
	case models.EventReplyCreated:
		messages = 1
	case models.EventMemberJoined:
		members = 1
	}

	tagDelta := make(map[string]int64, len(tags))
	for _, t := range tags {
		tagDelta[t]++
	}
	tagJSON, err := json.Marshal(tagDelta)
	if err != nil {
		return fmt.Errorf("marshal tag delta: %w", err)
	}

	// The jsonb merge adds each incoming tag count to the stored one.
	query := `
		INSERT INTO analytics_buckets (
			community_id, period_type, period_start, period_end,
			new_members_count, total_messages, total_discussions, tag_counts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (community_id, period_type, period_start) DO UPDATE SET
			new_members_count = analytics_buckets.new_members_count + EXCLUDED.new_members_count,
			total_messages    = analytics_buckets.total_messages + EXCLUDED.total_messages,
			total_discussions = analytics_buckets.total_discussions + EXCLUDED.total_discussions,
			tag_counts = (
				SELECT coalesce(jsonb_object_agg(key, coalesce((analytics_buckets.tag_counts ->> key)::bigint, 0)
					+ coalesce((EXCLUDED.tag_counts ->> key)::bigint, 0)), '{}'::jsonb)
				FROM (
					SELECT jsonb_object_keys(analytics_buckets.tag_counts || EXCLUDED.tag_counts) AS key
				) keys
			)`

	if _, err := s.pool.Exec(ctx, query,
		communityID, pt, periodStart, periodEnd,
		members, messages, discussions, tagJSON,
	); err != nil {
		return fmt.Errorf("upsert analytics bucket: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) ListBuckets(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, from, to time.Time) ([]models.AnalyticsBucket, error) {
	query := `
		SELECT community_id, period_type, period_start, period_end,
		       new_members_count, total_messages, total_discussions, tag_counts
		FROM analytics_buckets
		WHERE community_id = $1 AND period_type = $2
		  AND period_start >= $3 AND period_start < $4
		ORDER BY period_start ASC`

	rows, err := s.pool.Query(ctx, query, communityID, pt, from, to)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	out := make([]models.AnalyticsBucket, 0)
	for rows.Next() {
		var b models.AnalyticsBucket
		var tagJSON []byte
		if err := rows.Scan(
			&b.CommunityID, &b.PeriodType, &b.PeriodStart, &b.PeriodEnd,
			&b.NewMembersCount, &b.TotalMessages, &b.TotalDiscussions, &tagJSON,
		); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if err := json.Unmarshal(tagJSON, &b.TagCounts); err != nil {
			return nil, fmt.Errorf("decode tag counts: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return out, nil
}
