package async

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/OPTIX/errors"
)

// Store handles persistence of async jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new async job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts a new pending job and assigns its ID.
func (s *Store) Enqueue(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO async_jobs (
			user_id, repo_url, job_type, status,
			payload_path, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	payloadPath := sql.NullString{String: job.PayloadPath, Valid: job.PayloadPath != ""}
	payload := sql.NullString{String: string(job.Payload), Valid: len(job.Payload) > 0}

	res, err := s.db.ExecContext(ctx, query,
		job.UserID,
		job.RepoURL,
		job.Kind,
		job.Status,
		payloadPath,
		payload,
		job.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to enqueue job")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read new job id")
	}
	job.ID = id

	return nil
}

// ClaimNext atomically transitions the oldest pending job matching the
// kind filter to processing and returns it, or nil when nothing is
// claimable. The claim is a single UPDATE statement: the selecting
// subquery and the status flip execute under one SQLite write lock, so
// two pools sharing the database can never claim the same row. The
// status guard on the outer WHERE re-checks the row after lock
// acquisition.
func (s *Store) ClaimNext(ctx context.Context, kinds ...JobKind) (*Job, error) {
	kindFilter := ""
	if len(kinds) > 0 {
		kindFilter = " AND job_type IN (?" + strings.Repeat(", ?", len(kinds)-1) + ")"
	}

	query := `
		UPDATE async_jobs
		SET status = ?, started_at = ?
		WHERE id = (
			SELECT id FROM async_jobs
			WHERE status = ?` + kindFilter + `
			ORDER BY created_at, id
			LIMIT 1
		)
		AND status = ?
		RETURNING ` + StandardJobSelectColumns()

	args := []interface{}{JobStatusProcessing, time.Now().UTC(), JobStatusPending}
	for _, kind := range kinds {
		args = append(args, kind)
	}
	args = append(args, JobStatusPending)

	var job Job
	scanArgs := GetJobScanArgs()
	targets := GetJobScanTargets(&job, scanArgs)

	err := s.db.QueryRowContext(ctx, query, args...).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim next job")
	}

	ProcessJobScanArgs(&job, scanArgs)
	return &job, nil
}

// Complete marks a job done with a null error message and mutates the
// passed job to match the stored row.
func (s *Store) Complete(ctx context.Context, job *Job) error {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = ?, error_msg = NULL, finished_at = ? WHERE id = ?`,
		JobStatusDone, now, job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to complete job %d", job.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("job %d", job.ID)
	}

	job.Status = JobStatusDone
	job.Error = ""
	job.FinishedAt = &now
	return nil
}

// Fail marks a job failed, recording the first line of the error bounded
// to a sane length, and mutates the passed job to match the stored row.
func (s *Store) Fail(ctx context.Context, job *Job, jobErr error) error {
	now := time.Now().UTC()
	msg := errors.FirstLine(jobErr)
	if msg == "" {
		msg = "unknown error"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = ?, error_msg = ?, finished_at = ? WHERE id = ?`,
		JobStatusFailed, msg, now, job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to mark job %d failed", job.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("job %d", job.ID)
	}

	job.Status = JobStatusFailed
	job.Error = msg
	job.FinishedAt = &now
	return nil
}

// GetJob retrieves a job by ID within the user's scope.
func (s *Store) GetJob(ctx context.Context, userID int64, id int64) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM async_jobs WHERE id = ? AND user_id = ?`

	var job Job
	args := GetJobScanArgs()
	targets := GetJobScanTargets(&job, args)

	err := s.db.QueryRowContext(ctx, query, id, userID).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("job %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %d", id)
	}

	ProcessJobScanArgs(&job, args)
	return &job, nil
}

// ListJobs returns the user's jobs newest-first, optionally filtered by
// status. A limit of 0 applies the default of 50.
func (s *Store) ListJobs(ctx context.Context, userID int64, status *JobStatus, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + StandardJobSelectColumns() + ` FROM async_jobs WHERE user_id = ?`
	args := []interface{}{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		scanArgs := GetJobScanArgs()
		targets := GetJobScanTargets(&job, scanArgs)
		if err := rows.Scan(targets...); err != nil {
			return nil, errors.Wrap(err, "failed to scan job row")
		}
		ProcessJobScanArgs(&job, scanArgs)
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// Counts returns the number of jobs in each status across all users.
// Used for pool metrics and the pulse status surface.
func (s *Store) Counts(ctx context.Context) (map[JobStatus]int, error) {
	counts := map[JobStatus]int{
		JobStatusPending:    0,
		JobStatusProcessing: 0,
		JobStatusDone:       0,
		JobStatusFailed:     0,
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM async_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// HasActive reports whether the user already has a pending or processing
// job of the given kind for the repository. The HTTP facade uses this to
// reject duplicate graph builds.
func (s *Store) HasActive(ctx context.Context, userID int64, repoURL string, kind JobKind) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM async_jobs
			WHERE user_id = ? AND repo_url = ? AND job_type = ? AND status IN (?, ?)
		)`,
		userID, repoURL, kind, JobStatusPending, JobStatusProcessing,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check active jobs")
	}
	return exists, nil
}

// RequeueStale flips processing jobs whose lease has outlived staleAfter
// back to pending. Run on pool startup to recover jobs orphaned by a
// crash; the age threshold keeps a second pool sharing the database from
// sweeping jobs another live worker still holds.
func (s *Store) RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	res, err := s.db.ExecContext(ctx,
		`UPDATE async_jobs SET status = ?, started_at = NULL, error_msg = NULL
		 WHERE status = ? AND started_at < ?`,
		JobStatusPending, JobStatusProcessing, cutoff,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to requeue stale jobs")
	}

	return res.RowsAffected()
}
