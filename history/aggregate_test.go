package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "midweek",
			in:   time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday maps to itself",
			in:   time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the preceding monday",
			in:   time.Date(2024, 3, 24, 23, 59, 59, 0, time.UTC),
			want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "local time converts to UTC first",
			in:   time.Date(2024, 3, 19, 0, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year boundary",
			in:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), // a Monday
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStart(tt.in))
		})
	}
}

func TestChurnRate(t *testing.T) {
	// (10+3)*100 / max(10, 50) = 1300/50 = 26.00
	assert.Equal(t, 26.0, ChurnRate(10, 3, 10))

	// Above the floor the real size proxy is used.
	assert.Equal(t, 150.0, ChurnRate(200, 100, 200))

	// Rounded half-up to two decimals: 61*100/60 = 101.666...
	assert.Equal(t, 101.67, ChurnRate(60, 1, 60))

	assert.Equal(t, 0.0, ChurnRate(0, 0, 0))
}

func TestAggregateBucketsByFileAndWeek(t *testing.T) {
	wednesday := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	friday := time.Date(2024, 3, 22, 9, 0, 0, 0, time.UTC)
	nextTuesday := time.Date(2024, 3, 26, 8, 0, 0, 0, time.UTC)

	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "f.ts", Added: 10, Deleted: 3, AuthoredAt: wednesday},
		{CommitHash: "c2", FilePath: "f.ts", Added: 5, Deleted: 1, AuthoredAt: friday},
		{CommitHash: "c3", FilePath: "f.ts", Added: 2, Deleted: 2, AuthoredAt: nextTuesday},
		{CommitHash: "c1", FilePath: "other.ts", Added: 7, Deleted: 0, AuthoredAt: wednesday},
	}

	buckets := Aggregate(deltas)

	assert.Equal(t, []Bucket{
		{FilePath: "f.ts", WeekStart: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), Added: 15, Deleted: 4, Commits: 2},
		{FilePath: "f.ts", WeekStart: time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), Added: 2, Deleted: 2, Commits: 1},
		{FilePath: "other.ts", WeekStart: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), Added: 7, Deleted: 0, Commits: 1},
	}, buckets)
}

func TestAggregateIsOrderInsensitive(t *testing.T) {
	base := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	deltas := []FileDelta{
		{CommitHash: "c1", FilePath: "a.ts", Added: 1, Deleted: 2, AuthoredAt: base},
		{CommitHash: "c2", FilePath: "b.ts", Added: 3, Deleted: 4, AuthoredAt: base.AddDate(0, 0, 7)},
		{CommitHash: "c3", FilePath: "a.ts", Added: 5, Deleted: 6, AuthoredAt: base},
	}
	reversed := []FileDelta{deltas[2], deltas[1], deltas[0]}

	assert.Equal(t, Aggregate(deltas), Aggregate(reversed))
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
