package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/repository/memory"
	"go.uber.org/zap"
)

func TestBucketWindowDeterminism(t *testing.T) {
	// Two timestamps inside the same UTC day map to the same daily bucket,
	// regardless of the zone they were observed in.
	ny := time.FixedZone("UTC-5", -5*3600)
	a := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	b := time.Date(2025, 6, 15, 18, 59, 59, 0, time.UTC).In(ny)

	aStart, aEnd := BucketWindow(models.PeriodDaily, a)
	bStart, _ := BucketWindow(models.PeriodDaily, b)
	if !aStart.Equal(bStart) {
		t.Fatalf("daily starts differ: %s vs %s", aStart, bStart)
	}
	if aStart.Unix()%86400 != 0 {
		t.Fatalf("daily start %s not epoch-aligned", aStart)
	}
	if aEnd.Sub(aStart) != 24*time.Hour {
		t.Fatalf("daily width = %s, want 24h", aEnd.Sub(aStart))
	}

	wStart, wEnd := BucketWindow(models.PeriodWeekly, a)
	if wStart.Unix()%(7*86400) != 0 {
		t.Fatalf("weekly start %s not epoch-aligned", wStart)
	}
	if wEnd.Sub(wStart) != 7*24*time.Hour {
		t.Fatalf("weekly width = %s, want 168h", wEnd.Sub(wStart))
	}
	if a.Before(wStart) || !a.Before(wEnd) {
		t.Fatalf("timestamp %s outside its weekly bucket [%s, %s)", a, wStart, wEnd)
	}

	mStart, mEnd := BucketWindow(models.PeriodMonthly, a)
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !mStart.Equal(want) {
		t.Fatalf("monthly start = %s, want %s", mStart, want)
	}
	if !mEnd.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly end = %s, want first of next month", mEnd)
	}
}

func TestRecordFoldsAllPeriods(t *testing.T) {
	store := memory.NewStore()
	agg := NewAggregator(store.Analytics(), nil, zap.NewNop())
	communityID := uuid.New()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	agg.Record(ctx, communityID, models.EventDiscussionCreated, []string{"go", "postgres"}, at)
	agg.Record(ctx, communityID, models.EventReplyCreated, []string{"go"}, at.Add(time.Hour))
	agg.Record(ctx, communityID, models.EventMemberJoined, nil, at.Add(2*time.Hour))

	for _, pt := range []models.PeriodType{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly} {
		start, end := BucketWindow(pt, at)
		buckets, err := store.ListBuckets(ctx, communityID, pt, start, end)
		if err != nil {
			t.Fatalf("list %s buckets: %v", pt, err)
		}
		if len(buckets) != 1 {
			t.Fatalf("%s buckets = %d, want exactly one per period start", pt, len(buckets))
		}
		b := buckets[0]
		if b.TotalDiscussions != 1 || b.TotalMessages != 2 || b.NewMembersCount != 1 {
			t.Fatalf("%s counters = disc %d msg %d members %d, want 1/2/1",
				pt, b.TotalDiscussions, b.TotalMessages, b.NewMembersCount)
		}
		if b.TagCounts["go"] != 2 || b.TagCounts["postgres"] != 1 {
			t.Fatalf("%s tag counts = %v", pt, b.TagCounts)
		}
	}
}

func TestRecordSplitsAcrossDays(t *testing.T) {
	store := memory.NewStore()
	agg := NewAggregator(store.Analytics(), nil, zap.NewNop())
	communityID := uuid.New()
	ctx := context.Background()

	day1 := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC)
	agg.Record(ctx, communityID, models.EventReplyCreated, nil, day1)
	agg.Record(ctx, communityID, models.EventReplyCreated, nil, day2)

	from, _ := BucketWindow(models.PeriodDaily, day1)
	_, to := BucketWindow(models.PeriodDaily, day2)
	buckets, err := store.ListBuckets(ctx, communityID, models.PeriodDaily, from, to)
	if err != nil {
		t.Fatalf("list buckets: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("daily buckets = %d, want 2", len(buckets))
	}
	for _, b := range buckets {
		if b.TotalMessages != 1 {
			t.Fatalf("bucket %s messages = %d, want 1", b.PeriodStart, b.TotalMessages)
		}
	}
}

func TestRankEmergingTags(t *testing.T) {
	recent := map[string]int64{"rust": 6, "go": 10, "zig": 3, "cold": 0}
	prior := map[string]int64{"go": 9, "zig": 0}

	trends := RankEmergingTags(recent, prior, 10)
	if len(trends) != 3 {
		t.Fatalf("trends = %d entries, want 3 (zero-count dropped)", len(trends))
	}
	// rust: 6*7/1 = 42, go: 10*11/10 = 11, zig: 3*4/1 = 12.
	if trends[0].Tag != "rust" || trends[1].Tag != "zig" || trends[2].Tag != "go" {
		t.Fatalf("order = [%s %s %s], want [rust zig go]", trends[0].Tag, trends[1].Tag, trends[2].Tag)
	}
	if trends[0].TrendScore <= trends[1].TrendScore || trends[1].TrendScore <= trends[2].TrendScore {
		t.Fatalf("scores not descending: %v", trends)
	}

	// Equal scores break ties alphabetically.
	tied := RankEmergingTags(map[string]int64{"b": 2, "a": 2}, nil, 10)
	if tied[0].Tag != "a" || tied[1].Tag != "b" {
		t.Fatalf("tie order = [%s %s], want [a b]", tied[0].Tag, tied[1].Tag)
	}

	limited := RankEmergingTags(recent, prior, 2)
	if len(limited) != 2 {
		t.Fatalf("limited trends = %d, want 2", len(limited))
	}
}

func TestQueryBucketsTrendsAgainstPredecessor(t *testing.T) {
	store := memory.NewStore()
	agg := NewAggregator(store.Analytics(), nil, zap.NewNop())
	communityID := uuid.New()
	ctx := context.Background()

	day1 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	// "go" holds steady, "wasm" appears from nothing on day two.
	agg.Record(ctx, communityID, models.EventDiscussionCreated, []string{"go", "go", "go"}, day1)
	agg.Record(ctx, communityID, models.EventDiscussionCreated, []string{"go", "go", "go", "wasm", "wasm"}, day2)

	from, _ := BucketWindow(models.PeriodDaily, day2)
	_, to := BucketWindow(models.PeriodDaily, day2)
	buckets, err := agg.QueryBuckets(ctx, communityID, models.PeriodDaily, from, to)
	if err != nil {
		t.Fatalf("query buckets: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d, want just day two (the prior day is context, not output)", len(buckets))
	}
	tags := buckets[0].EmergingTags
	if len(tags) != 2 {
		t.Fatalf("emerging tags = %v, want 2 entries", tags)
	}
	if tags[0].Tag != "wasm" {
		t.Fatalf("top emerging tag = %q, want the newly-appearing one", tags[0].Tag)
	}

	if _, err := agg.QueryBuckets(ctx, communityID, models.PeriodType("hourly"), from, to); err == nil {
		t.Fatalf("unknown period accepted")
	}
}
