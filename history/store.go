package history

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/teranos/OPTIX/errors"
)

// Hotspot and trend query defaults.
const (
	DefaultHotspotWindowWeeks = 12
	DefaultHotspotThreshold   = 25.0
	MaxHotspots               = 20
	DefaultSummaryLimit       = 50
)

// Store persists mined history and serves churn queries. SizeHint, when
// set, supplies a better file-size proxy for the churn denominator than
// cumulative lines added.
type Store struct {
	db       *sql.DB
	SizeHint func(filePath string) int
}

// NewStore creates a history store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveStats reports what one SaveMineResult call changed.
type SaveStats struct {
	NewCommits     int
	KnownCommits   int
	BucketsTouched int
}

// SaveMineResult records summaries and folds deltas into weekly churn
// in one transaction. Commits already summarized by an earlier run are
// not counted again, so overlapping windows stay idempotent.
func (s *Store) SaveMineResult(ctx context.Context, userID int64, repoURL string, result *MineResult) (*SaveStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning history save")
	}
	defer tx.Rollback()

	stats := &SaveStats{}
	known := make(map[string]bool)
	for _, cs := range result.Summaries {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO commit_summaries
				(user_id, repo_url, commit_hash, author_email, message, committed_at, files_changed, insertions, deletions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, repo_url, commit_hash) DO NOTHING`,
			userID, repoURL, cs.CommitHash, cs.AuthorEmail, cs.Message, cs.CommittedAt.UTC(),
			cs.FilesChanged, cs.Insertions, cs.Deletions)
		if err != nil {
			return nil, errors.Wrapf(err, "inserting summary for %s", cs.CommitHash)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "reading summary insert result")
		}
		if n == 0 {
			known[cs.CommitHash] = true
			stats.KnownCommits++
			continue
		}
		stats.NewCommits++
	}

	fresh := make([]FileDelta, 0, len(result.Deltas))
	for _, d := range result.Deltas {
		if !known[d.CommitHash] {
			fresh = append(fresh, d)
		}
	}

	for _, b := range Aggregate(fresh) {
		if err := s.applyBucket(ctx, tx, userID, repoURL, b); err != nil {
			return nil, err
		}
		stats.BucketsTouched++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing history save")
	}
	return stats, nil
}

// applyBucket folds one weekly bucket into its stored row, recomputing
// the churn rate from the cumulative counters.
func (s *Store) applyBucket(ctx context.Context, tx *sql.Tx, userID int64, repoURL string, b Bucket) error {
	var added, deleted, commits int
	err := tx.QueryRowContext(ctx, `
		SELECT lines_added, lines_deleted, commit_count
		FROM file_churn_stats
		WHERE user_id = ? AND repo_url = ? AND file_path = ? AND week_start = ?`,
		userID, repoURL, b.FilePath, b.WeekStart.UTC()).Scan(&added, &deleted, &commits)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrapf(err, "reading churn bucket %s@%s", b.FilePath, b.WeekStart.Format("2006-01-02"))
	}
	existed := err == nil

	added += b.Added
	deleted += b.Deleted
	commits += b.Commits
	rate := ChurnRate(added, deleted, s.sizeProxy(b.FilePath, added))
	now := time.Now().UTC()

	if existed {
		_, err = tx.ExecContext(ctx, `
			UPDATE file_churn_stats
			SET commit_count = ?, lines_added = ?, lines_deleted = ?, churn_rate = ?, updated_at = ?
			WHERE user_id = ? AND repo_url = ? AND file_path = ? AND week_start = ?`,
			commits, added, deleted, rate, now, userID, repoURL, b.FilePath, b.WeekStart.UTC())
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO file_churn_stats
				(user_id, repo_url, file_path, commit_count, lines_added, lines_deleted, churn_rate, week_start, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, repoURL, b.FilePath, commits, added, deleted, rate, b.WeekStart.UTC(), now)
	}
	return errors.Wrapf(err, "writing churn bucket %s@%s", b.FilePath, b.WeekStart.Format("2006-01-02"))
}

func (s *Store) sizeProxy(filePath string, linesAdded int) int {
	if s.SizeHint != nil {
		if n := s.SizeHint(filePath); n > 0 {
			return n
		}
	}
	return linesAdded
}

// Hotspots returns the most churn-heavy files in the window: weekly
// rows above the threshold, grouped by file, ranked by average churn
// descending, capped at MaxHotspots. Zero windowWeeks or threshold
// select the defaults.
func (s *Store) Hotspots(ctx context.Context, userID int64, repoURL string, windowWeeks int, threshold float64) ([]Hotspot, error) {
	if windowWeeks <= 0 {
		windowWeeks = DefaultHotspotWindowWeeks
	}
	if threshold <= 0 {
		threshold = DefaultHotspotThreshold
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -7*windowWeeks)

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, week_start, churn_rate, commit_count, lines_added, lines_deleted
		FROM file_churn_stats
		WHERE user_id = ? AND repo_url = ? AND week_start >= ? AND churn_rate > ?
		ORDER BY file_path, week_start`,
		userID, repoURL, cutoff, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "querying hotspots")
	}
	defer rows.Close()

	spots := []Hotspot{}
	var cur *Hotspot
	for rows.Next() {
		var fp string
		var tp TrendPoint
		if err := rows.Scan(&fp, &tp.WeekStart, &tp.ChurnRate, &tp.CommitCount, &tp.LinesAdded, &tp.LinesDeleted); err != nil {
			return nil, errors.Wrap(err, "scanning hotspot row")
		}
		if cur == nil || cur.FilePath != fp {
			spots = append(spots, Hotspot{FilePath: fp})
			cur = &spots[len(spots)-1]
		}
		cur.Trend = append(cur.Trend, tp)
		cur.TotalCommits += tp.CommitCount
		cur.TotalAdded += tp.LinesAdded
		cur.TotalDeleted += tp.LinesDeleted
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating hotspot rows")
	}

	for i := range spots {
		sum := 0.0
		for _, tp := range spots[i].Trend {
			sum += tp.ChurnRate
		}
		spots[i].AvgChurnRate = math.Round(sum/float64(len(spots[i].Trend))*100) / 100
	}
	sort.SliceStable(spots, func(i, j int) bool {
		if spots[i].AvgChurnRate != spots[j].AvgChurnRate {
			return spots[i].AvgChurnRate > spots[j].AvgChurnRate
		}
		return spots[i].FilePath < spots[j].FilePath
	})
	if len(spots) > MaxHotspots {
		spots = spots[:MaxHotspots]
	}
	return spots, nil
}

// FileTrend returns the weekly churn rows for one file, oldest first.
func (s *Store) FileTrend(ctx context.Context, userID int64, repoURL, filePath string, windowWeeks int) ([]TrendPoint, error) {
	if windowWeeks <= 0 {
		windowWeeks = DefaultHotspotWindowWeeks
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -7*windowWeeks)

	rows, err := s.db.QueryContext(ctx, `
		SELECT week_start, churn_rate, commit_count, lines_added, lines_deleted
		FROM file_churn_stats
		WHERE user_id = ? AND repo_url = ? AND file_path = ? AND week_start >= ?
		ORDER BY week_start`,
		userID, repoURL, filePath, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "querying file trend")
	}
	defer rows.Close()

	trend := []TrendPoint{}
	for rows.Next() {
		var tp TrendPoint
		if err := rows.Scan(&tp.WeekStart, &tp.ChurnRate, &tp.CommitCount, &tp.LinesAdded, &tp.LinesDeleted); err != nil {
			return nil, errors.Wrap(err, "scanning trend row")
		}
		trend = append(trend, tp)
	}
	return trend, rows.Err()
}

// CommitSummaries returns recorded commits, newest first.
func (s *Store) CommitSummaries(ctx context.Context, userID int64, repoURL string, limit int) ([]CommitSummary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT commit_hash, author_email, message, committed_at, files_changed, insertions, deletions
		FROM commit_summaries
		WHERE user_id = ? AND repo_url = ?
		ORDER BY committed_at DESC, id DESC
		LIMIT ?`,
		userID, repoURL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying commit summaries")
	}
	defer rows.Close()

	var summaries []CommitSummary
	for rows.Next() {
		var cs CommitSummary
		if err := rows.Scan(&cs.CommitHash, &cs.AuthorEmail, &cs.Message, &cs.CommittedAt,
			&cs.FilesChanged, &cs.Insertions, &cs.Deletions); err != nil {
			return nil, errors.Wrap(err, "scanning commit summary")
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}
