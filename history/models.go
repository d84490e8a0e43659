package history

import "time"

// FileDelta is one mined per-file line change, attributed to a commit.
type FileDelta struct {
	CommitHash  string
	FilePath    string
	Added       int
	Deleted     int
	AuthoredAt  time.Time
	AuthorEmail string
}

// CommitSummary mirrors one commit_summaries row.
type CommitSummary struct {
	CommitHash   string    `json:"commitHash"`
	AuthorEmail  string    `json:"authorEmail"`
	Message      string    `json:"message"`
	CommittedAt  time.Time `json:"committedAt"`
	FilesChanged int       `json:"filesChanged"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

// MineResult carries one run's summaries and deltas in walk order.
type MineResult struct {
	Summaries []CommitSummary
	Deltas    []FileDelta
}

// TrendPoint is one weekly churn bucket of a file.
type TrendPoint struct {
	WeekStart    time.Time `json:"weekStart"`
	ChurnRate    float64   `json:"churnRate"`
	CommitCount  int       `json:"commitCount"`
	LinesAdded   int       `json:"linesAdded"`
	LinesDeleted int       `json:"linesDeleted"`
}

// Hotspot aggregates a file's above-threshold weeks within a window.
type Hotspot struct {
	FilePath     string       `json:"filePath"`
	AvgChurnRate float64      `json:"avgChurnRate"`
	TotalCommits int          `json:"totalCommits"`
	TotalAdded   int          `json:"totalLinesAdded"`
	TotalDeleted int          `json:"totalLinesDeleted"`
	Trend        []TrendPoint `json:"weeklyTrend"`
}

// BlameLine is one attributed line of a file at head.
type BlameLine struct {
	LineNo      int       `json:"lineNo"`
	CommitHash  string    `json:"commitHash"`
	AuthorEmail string    `json:"authorEmail"`
	CommittedAt time.Time `json:"committedAt"`
	Content     string    `json:"content"`
}
