package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	optixtest "github.com/teranos/OPTIX/internal/testing"
)

const testRepo = "https://example.com/team/app.git"

func summaryFor(hash string, when time.Time, deltas []FileDelta) CommitSummary {
	cs := CommitSummary{
		CommitHash:  hash,
		AuthorEmail: "dev@example.com",
		Message:     "change " + hash,
		CommittedAt: when,
	}
	for _, d := range deltas {
		if d.CommitHash == hash {
			cs.FilesChanged++
			cs.Insertions += d.Added
			cs.Deletions += d.Deleted
		}
	}
	return cs
}

func TestSaveMineResultWeeklyBucket(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	authored := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: authored},
	}
	stats, err := store.SaveMineResult(ctx, 1, testRepo, &MineResult{
		Summaries: []CommitSummary{summaryFor("c1", authored, deltas)},
		Deltas:    deltas,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewCommits)
	assert.Equal(t, 0, stats.KnownCommits)
	assert.Equal(t, 1, stats.BucketsTouched)

	trend, err := store.FileTrend(ctx, 1, testRepo, "f.ts", 52*10)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), trend[0].WeekStart.UTC())
	assert.Equal(t, 10, trend[0].LinesAdded)
	assert.Equal(t, 3, trend[0].LinesDeleted)
	assert.Equal(t, 1, trend[0].CommitCount)
	assert.Equal(t, 26.0, trend[0].ChurnRate)
}

func TestSaveMineResultChurnAdditivity(t *testing.T) {
	ctx := context.Background()
	week := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: week},
		{CommitHash: "c2", FilePath: "f.ts", Added: 30, Deleted: 8, AuthoredAt: week.AddDate(0, 0, 1)},
		{CommitHash: "c3", FilePath: "f.ts", Added: 60, Deleted: 5, AuthoredAt: week.AddDate(0, 0, 9)},
		{CommitHash: "c3", FilePath: "g.ts", Added: 4, Deleted: 4, AuthoredAt: week.AddDate(0, 0, 9)},
	}
	mineResult := func(ds []FileDelta) *MineResult {
		r := &MineResult{Deltas: ds}
		seen := map[string]bool{}
		for _, d := range ds {
			if !seen[d.CommitHash] {
				seen[d.CommitHash] = true
				r.Summaries = append(r.Summaries, summaryFor(d.CommitHash, d.AuthoredAt, ds))
			}
		}
		return r
	}

	single := NewStore(optixtest.CreateTestDB(t))
	_, err := single.SaveMineResult(ctx, 1, testRepo, mineResult(deltas))
	require.NoError(t, err)

	// Split inside a week so the second chunk folds into a stored bucket.
	chunked := NewStore(optixtest.CreateTestDB(t))
	_, err = chunked.SaveMineResult(ctx, 1, testRepo, mineResult(deltas[:1]))
	require.NoError(t, err)
	_, err = chunked.SaveMineResult(ctx, 1, testRepo, mineResult(deltas[1:]))
	require.NoError(t, err)

	for _, file := range []string{"f.ts", "g.ts"} {
		want, err := single.FileTrend(ctx, 1, testRepo, file, 52*10)
		require.NoError(t, err)
		got, err := chunked.FileTrend(ctx, 1, testRepo, file, 52*10)
		require.NoError(t, err)
		assert.Equal(t, want, got, "trend for %s", file)
	}
}

func TestSaveMineResultOverlappingRunsDoNotDoubleCount(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	authored := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: authored},
	}
	result := &MineResult{
		Summaries: []CommitSummary{summaryFor("c1", authored, deltas)},
		Deltas:    deltas,
	}

	_, err := store.SaveMineResult(ctx, 1, testRepo, result)
	require.NoError(t, err)

	stats, err := store.SaveMineResult(ctx, 1, testRepo, result)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NewCommits)
	assert.Equal(t, 1, stats.KnownCommits)
	assert.Equal(t, 0, stats.BucketsTouched)

	summaries, err := store.CommitSummaries(ctx, 1, testRepo, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	trend, err := store.FileTrend(ctx, 1, testRepo, "f.ts", 52*10)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, 10, trend[0].LinesAdded)
	assert.Equal(t, 1, trend[0].CommitCount)
}

func TestSaveMineResultAccumulatesIntoExistingBucket(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	authored := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	first := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: authored},
	}
	second := []FileDelta{
		{CommitHash: "c2", FilePath: "f.ts", Added: 50, Deleted: 7, AuthoredAt: authored.AddDate(0, 0, 1)},
	}

	_, err := store.SaveMineResult(ctx, 1, testRepo, &MineResult{
		Summaries: []CommitSummary{summaryFor("c1", authored, first)},
		Deltas:    first,
	})
	require.NoError(t, err)
	_, err = store.SaveMineResult(ctx, 1, testRepo, &MineResult{
		Summaries: []CommitSummary{summaryFor("c2", authored, second)},
		Deltas:    second,
	})
	require.NoError(t, err)

	trend, err := store.FileTrend(ctx, 1, testRepo, "f.ts", 52*10)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, 60, trend[0].LinesAdded)
	assert.Equal(t, 10, trend[0].LinesDeleted)
	assert.Equal(t, 2, trend[0].CommitCount)
	// (60+10)*100 / max(60, 50) = 7000/60 = 116.67
	assert.Equal(t, 116.67, trend[0].ChurnRate)
}

func seedChurnRow(t *testing.T, store *Store, userID int64, repo, file string, weekStart time.Time, rate float64, commits, added, deleted int) {
	t.Helper()
	_, err := store.db.Exec(`
		INSERT INTO file_churn_stats
			(user_id, repo_url, file_path, commit_count, lines_added, lines_deleted, churn_rate, week_start, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, repo, file, commits, added, deleted, rate, weekStart.UTC(), time.Now().UTC())
	require.NoError(t, err)
}

func TestHotspotsThresholdAndAverage(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	thisWeek := WeekStart(time.Now().UTC())
	seedChurnRow(t, store, 1, testRepo, "hot.ts", thisWeek.AddDate(0, 0, -21), 30.0, 2, 100, 20)
	seedChurnRow(t, store, 1, testRepo, "hot.ts", thisWeek.AddDate(0, 0, -14), 40.0, 3, 150, 30)
	seedChurnRow(t, store, 1, testRepo, "hot.ts", thisWeek.AddDate(0, 0, -7), 10.0, 1, 10, 5)
	seedChurnRow(t, store, 1, testRepo, "calm.ts", thisWeek.AddDate(0, 0, -7), 5.0, 1, 3, 1)

	spots, err := store.Hotspots(ctx, 1, testRepo, 12, 25.0)
	require.NoError(t, err)

	require.Len(t, spots, 1)
	hot := spots[0]
	assert.Equal(t, "hot.ts", hot.FilePath)
	assert.Equal(t, 35.0, hot.AvgChurnRate)
	// Totals cover only the above-threshold weeks.
	assert.Equal(t, 5, hot.TotalCommits)
	assert.Equal(t, 250, hot.TotalAdded)
	assert.Equal(t, 50, hot.TotalDeleted)
	require.Len(t, hot.Trend, 2)
	assert.True(t, hot.Trend[0].WeekStart.Before(hot.Trend[1].WeekStart))
	assert.Equal(t, 30.0, hot.Trend[0].ChurnRate)
	assert.Equal(t, 40.0, hot.Trend[1].ChurnRate)
}

func TestHotspotsWindowExcludesOldWeeks(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	thisWeek := WeekStart(time.Now().UTC())
	seedChurnRow(t, store, 1, testRepo, "old.ts", thisWeek.AddDate(0, 0, -7*30), 90.0, 5, 200, 100)
	seedChurnRow(t, store, 1, testRepo, "new.ts", thisWeek.AddDate(0, 0, -7), 50.0, 2, 80, 40)

	spots, err := store.Hotspots(ctx, 1, testRepo, 12, 25.0)
	require.NoError(t, err)

	require.Len(t, spots, 1)
	assert.Equal(t, "new.ts", spots[0].FilePath)
}

func TestHotspotsRankedAndCapped(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	thisWeek := WeekStart(time.Now().UTC())
	for i := 0; i < MaxHotspots+5; i++ {
		file := fmt.Sprintf("file%02d.ts", i)
		seedChurnRow(t, store, 1, testRepo, file, thisWeek.AddDate(0, 0, -7), 30.0+float64(i), 1, 50, 10)
	}

	spots, err := store.Hotspots(ctx, 1, testRepo, 12, 25.0)
	require.NoError(t, err)

	require.Len(t, spots, MaxHotspots)
	// Highest average churn first.
	assert.Equal(t, fmt.Sprintf("file%02d.ts", MaxHotspots+4), spots[0].FilePath)
	for i := 1; i < len(spots); i++ {
		assert.GreaterOrEqual(t, spots[i-1].AvgChurnRate, spots[i].AvgChurnRate)
	}
}

func TestHotspotsAndTrendScopedByUser(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	thisWeek := WeekStart(time.Now().UTC())
	seedChurnRow(t, store, 1, testRepo, "mine.ts", thisWeek.AddDate(0, 0, -7), 60.0, 2, 90, 30)
	seedChurnRow(t, store, 2, testRepo, "theirs.ts", thisWeek.AddDate(0, 0, -7), 60.0, 2, 90, 30)

	spots, err := store.Hotspots(ctx, 1, testRepo, 12, 25.0)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, "mine.ts", spots[0].FilePath)

	trend, err := store.FileTrend(ctx, 1, testRepo, "theirs.ts", 12)
	require.NoError(t, err)
	assert.Empty(t, trend)
}

func TestSizeHintReplacesDenominator(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	store.SizeHint = func(filePath string) int { return 1000 }
	ctx := context.Background()

	authored := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: authored},
	}
	_, err := store.SaveMineResult(ctx, 1, testRepo, &MineResult{
		Summaries: []CommitSummary{summaryFor("c1", authored, deltas)},
		Deltas:    deltas,
	})
	require.NoError(t, err)

	trend, err := store.FileTrend(ctx, 1, testRepo, "f.ts", 52*10)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	// 13*100/1000 instead of 13*100/50.
	assert.Equal(t, 1.3, trend[0].ChurnRate)
}

func TestCommitSummariesNewestFirst(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t))
	ctx := context.Background()

	older := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	_, err := store.SaveMineResult(ctx, 1, testRepo, &MineResult{
		Summaries: []CommitSummary{
			summaryFor("old", older, nil),
			summaryFor("new", newer, nil),
		},
	})
	require.NoError(t, err)

	summaries, err := store.CommitSummaries(ctx, 1, testRepo, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].CommitHash)
	assert.Equal(t, "old", summaries[1].CommitHash)
}

// --- Sqlmock Tests ---
// Minimal sqlmock tests to verify query structure and error wrapping.

func TestHotspots_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	week := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"file_path", "week_start", "churn_rate", "commit_count", "lines_added", "lines_deleted",
	}).
		AddRow("calm.ts", week, 35.0, 2, 40, 10).
		AddRow("hot.ts", week, 40.0, 3, 80, 20).
		AddRow("hot.ts", week.AddDate(0, 0, 7), 20.0, 1, 15, 5)

	mock.ExpectQuery(`SELECT file_path, week_start, churn_rate, commit_count, lines_added, lines_deleted\s+FROM file_churn_stats`).
		WithArgs(int64(1), testRepo, sqlmock.AnyArg(), 30.0).
		WillReturnRows(rows)

	spots, err := store.Hotspots(context.Background(), 1, testRepo, 12, 30.0)
	require.NoError(t, err)

	require.Len(t, spots, 2)
	assert.Equal(t, "calm.ts", spots[0].FilePath)
	assert.Equal(t, 35.0, spots[0].AvgChurnRate)
	assert.Equal(t, "hot.ts", spots[1].FilePath)
	assert.Equal(t, 30.0, spots[1].AvgChurnRate)
	assert.Equal(t, 4, spots[1].TotalCommits)
	assert.Len(t, spots[1].Trend, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHotspotsQueryError_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery(`FROM file_churn_stats`).
		WillReturnError(fmt.Errorf("disk I/O error"))

	_, err = store.Hotspots(context.Background(), 1, testRepo, 12, 30.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying hotspots")

	assert.NoError(t, mock.ExpectationsWereMet())
}
