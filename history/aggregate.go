package history

import (
	"math"
	"sort"
	"time"
)

// churnSizeFloor keeps the churn denominator away from tiny values so
// brand-new files do not produce absurd rates.
const churnSizeFloor = 50

// Bucket accumulates one (filePath, weekStart) cell of mined deltas.
type Bucket struct {
	FilePath  string
	WeekStart time.Time
	Added     int
	Deleted   int
	Commits   int
}

// Aggregate folds deltas into weekly buckets keyed by file and ISO
// week. The fold is commutative, so mined record order never changes
// the result. Buckets come back sorted by (file, week) for stable
// writes.
func Aggregate(deltas []FileDelta) []Bucket {
	type key struct {
		path string
		week time.Time
	}
	cells := make(map[key]*Bucket)
	for _, d := range deltas {
		k := key{path: d.FilePath, week: WeekStart(d.AuthoredAt)}
		b, ok := cells[k]
		if !ok {
			b = &Bucket{FilePath: k.path, WeekStart: k.week}
			cells[k] = b
		}
		b.Added += d.Added
		b.Deleted += d.Deleted
		b.Commits++
	}

	buckets := make([]Bucket, 0, len(cells))
	for _, b := range cells {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].FilePath != buckets[j].FilePath {
			return buckets[i].FilePath < buckets[j].FilePath
		}
		return buckets[i].WeekStart.Before(buckets[j].WeekStart)
	})
	return buckets
}

// WeekStart returns the Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(date.Weekday()) + 6) % 7 // Monday -> 0
	return date.AddDate(0, 0, -offset)
}

// ChurnRate relates total churn to a file-size proxy, floored at
// churnSizeFloor, rounded half-up to two decimals.
func ChurnRate(linesAdded, linesDeleted, sizeProxy int) float64 {
	den := sizeProxy
	if den < churnSizeFloor {
		den = churnSizeFloor
	}
	rate := float64((linesAdded+linesDeleted)*100) / float64(den)
	return math.Round(rate*100) / 100
}
