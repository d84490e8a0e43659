// Package async provides the persistent job pipeline: a SQLite-backed
// queue, a worker pool with lease semantics, and dispatch to the
// registered per-kind handlers.
package async

import (
	"encoding/json"
	"time"

	"github.com/teranos/OPTIX/errors"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return true
	default:
		return false
	}
}

// JobKind identifies which worker handler executes a job. The set is
// closed: the schema CHECK constraint rejects anything else, so new kinds
// require a migration alongside the handler.
type JobKind string

const (
	// KindScipIndex ingests an uploaded SCIP binary index
	KindScipIndex JobKind = "scip_index"
	// KindGraphBuild extracts import dependency edges from a repository
	KindGraphBuild JobKind = "graph_build"
	// KindGitMine walks git history and aggregates weekly churn
	KindGitMine JobKind = "git_mine"
)

// IsValidKind returns true if the kind string is a valid JobKind
func IsValidKind(s string) bool {
	switch JobKind(s) {
	case KindScipIndex, KindGraphBuild, KindGitMine:
		return true
	default:
		return false
	}
}

// MaxRepoURLLength bounds repo_url at enqueue time; the column is indexed
// as part of every per-user scope and unbounded URLs are never legitimate.
const MaxRepoURLLength = 1000

// Job is one row of the async_jobs queue. Rows are created pending by the
// HTTP facade or CLI and mutated only by workers; Payload carries
// kind-specific JSON options and PayloadPath points at spooled upload
// bytes for scip_index jobs.
type Job struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	RepoURL     string          `json:"repo_url"`
	Kind        JobKind         `json:"kind"`
	Status      JobStatus       `json:"status"`
	PayloadPath string          `json:"payload_path,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// NewJob creates a pending job for the given user and repository.
func NewJob(userID int64, repoURL string, kind JobKind) (*Job, error) {
	if !IsValidKind(string(kind)) {
		return nil, errors.Wrapf(errors.ErrUnsupportedJobKind, "kind %q", kind)
	}
	if repoURL == "" {
		return nil, errors.InvalidInputf("repo URL cannot be empty")
	}
	if len(repoURL) > MaxRepoURLLength {
		return nil, errors.InvalidInputf("repo URL exceeds %d characters", MaxRepoURLLength)
	}

	return &Job{
		UserID:    userID,
		RepoURL:   repoURL,
		Kind:      kind,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// WithPayload attaches kind-specific JSON options to the job.
func (j *Job) WithPayload(payload json.RawMessage) *Job {
	j.Payload = payload
	return j
}

// WithPayloadPath records where the job's spooled input bytes live on disk.
func (j *Job) WithPayloadPath(path string) *Job {
	j.PayloadPath = path
	return j
}

// IsTerminal returns true once a job has reached done or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}

// Duration returns how long the job ran, or how long it has been running.
// Returns zero for jobs that never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}
