// Package analytics folds raw activity events into fixed time buckets per
// community and serves them back as historical ranges and live dashboard
// counters.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	emergingTagsLimit = 10
	liveKeyTTL        = 48 * time.Hour
	recordTimeout     = 5 * time.Second
)

var allPeriods = []models.PeriodType{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly}

// BucketWindow maps a timestamp to its bucket [start, end) for the given
// period type. Daily and weekly windows floor-divide against the Unix
// epoch, so the same timestamp always lands in the same bucket no matter
// when or where the computation runs. Monthly windows truncate to the
// first of the UTC month — calendar months aren't fixed-width, but the
// mapping is just as deterministic and idempotent.
func BucketWindow(pt models.PeriodType, ts time.Time) (start, end time.Time) {
	ts = ts.UTC()
	switch pt {
	case models.PeriodWeekly:
		const week = 7 * 86400
		floor := (ts.Unix() / week) * week
		start = time.Unix(floor, 0).UTC()
		return start, start.Add(7 * 24 * time.Hour)
	case models.PeriodMonthly:
		start = time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		const day = 86400
		floor := (ts.Unix() / day) * day
		start = time.Unix(floor, 0).UTC()
		return start, start.Add(24 * time.Hour)
	}
}

// Aggregator consumes events from the lifecycle manager and vote processor
// and maintains the per-community buckets. It is the only writer of
// analytics state.
type Aggregator struct {
	repo   repository.AnalyticsRepository
	live   *redis.Client
	logger *zap.Logger
}

// NewAggregator builds an aggregator. live may be nil; dashboards then
// fall back to bucket queries only.
func NewAggregator(repo repository.AnalyticsRepository, live *redis.Client, logger *zap.Logger) *Aggregator {
	return &Aggregator{repo: repo, live: live, logger: logger}
}

var _ engine.ActivityRecorder = (*Aggregator)(nil)

// Record folds one event into all three period widths. Failures are logged
// and swallowed — analytics lag must never fail the discussion or vote
// write that produced the event. Callers record at-most-once per logical
// event; the upsert keyed (community, periodType, periodStart) keeps the
// counters additive either way.
func (a *Aggregator) Record(ctx context.Context, communityID uuid.UUID, event models.EventType, tags []string, at time.Time) {
	// Detach from the caller's deadline: a cancelled request context
	// shouldn't lose an event that already logically happened.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	for _, pt := range allPeriods {
		start, end := BucketWindow(pt, at)
		if err := a.repo.UpsertBucket(ctx, communityID, pt, start, end, event, tags); err != nil {
			a.logger.Error("upsert analytics bucket",
				zap.Error(err),
				zap.String("community_id", communityID.String()),
				zap.String("period_type", string(pt)),
			)
		}
	}
	a.bumpLive(ctx, communityID, event, at)
}

// bumpLive increments the Redis dashboard counter for the current day.
func (a *Aggregator) bumpLive(ctx context.Context, communityID uuid.UUID, event models.EventType, at time.Time) {
	if a.live == nil {
		return
	}
	start, _ := BucketWindow(models.PeriodDaily, at)
	key := liveKey(communityID, start)
	pipe := a.live.Pipeline()
	pipe.HIncrBy(ctx, key, string(event), 1)
	pipe.Expire(ctx, key, liveKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("bump live counter", zap.Error(err), zap.String("key", key))
	}
}

func liveKey(communityID uuid.UUID, dayStart time.Time) string {
	return fmt.Sprintf("agora:live:%s:%d", communityID, dayStart.Unix())
}

// LiveCounts returns today's raw event counters for a community's live
// dashboard. Empty map when Redis is absent or the day is quiet.
func (a *Aggregator) LiveCounts(ctx context.Context, communityID uuid.UUID) (map[string]int64, error) {
	out := make(map[string]int64)
	if a.live == nil {
		return out, nil
	}
	start, _ := BucketWindow(models.PeriodDaily, time.Now())
	fields, err := a.live.HGetAll(ctx, liveKey(communityID, start)).Result()
	if err != nil {
		return nil, fmt.Errorf("live counts: %w", err)
	}
	for k, v := range fields {
		var n int64
		fmt.Sscan(v, &n)
		out[k] = n
	}
	return out, nil
}

// QueryBuckets returns the buckets overlapping [from, to) in period order,
// with emerging tags ranked against each bucket's predecessor.
func (a *Aggregator) QueryBuckets(ctx context.Context, communityID uuid.UUID, pt models.PeriodType, from, to time.Time) ([]models.AnalyticsBucket, error) {
	switch pt {
	case models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly:
	default:
		return nil, fmt.Errorf("query buckets: unknown period type %q", pt)
	}
	// Widen the read one period back so the first requested bucket has a
	// predecessor to trend against.
	priorStart, _ := BucketWindow(pt, from.Add(-time.Second))
	buckets, err := a.repo.ListBuckets(ctx, communityID, pt, priorStart, to)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}

	byStart := make(map[int64]models.AnalyticsBucket, len(buckets))
	for _, b := range buckets {
		byStart[b.PeriodStart.Unix()] = b
	}

	out := make([]models.AnalyticsBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.PeriodStart.Before(from) {
			continue
		}
		prevStart, _ := BucketWindow(pt, b.PeriodStart.Add(-time.Second))
		var prior map[string]int64
		if prev, ok := byStart[prevStart.Unix()]; ok {
			prior = prev.TagCounts
		}
		b.EmergingTags = RankEmergingTags(b.TagCounts, prior, emergingTagsLimit)
		out = append(out, b)
	}
	return out, nil
}

// RankEmergingTags scores tags by recent usage relative to the prior
// period and returns the top entries, highest first.
//
// score = recent * (recent+1)/(prior+1): strictly increasing in recent
// usage growth, favoring tags accelerating from a small base without
// dividing by zero. The exact weighting is policy, not contract.
func RankEmergingTags(recent, prior map[string]int64, limit int) []models.TagTrend {
	trends := make([]models.TagTrend, 0, len(recent))
	for tag, count := range recent {
		if count == 0 {
			continue
		}
		score := float64(count) * float64(count+1) / float64(prior[tag]+1)
		trends = append(trends, models.TagTrend{Tag: tag, TrendScore: score})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].TrendScore != trends[j].TrendScore {
			return trends[i].TrendScore > trends[j].TrendScore
		}
		return trends[i].Tag < trends[j].Tag
	})
	if limit > 0 && len(trends) > limit {
		trends = trends[:limit]
	}
	return trends
}
