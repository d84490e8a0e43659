package async

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/OPTIX/errors"
)

const (
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Queue wraps the job store with subscriber notifications. Every state
// transition that goes through the queue is broadcast to subscribers, so
// the websocket layer and CLI watchers see claims, completions, and
// failures as they happen.
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Job
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:       NewStore(db),
		subscribers: make([]chan *Job, 0),
	}
}

// Store exposes the underlying store for read-only queries that do not
// need notification plumbing.
func (q *Queue) Store() *Store {
	return q.store
}

// Enqueue adds a new pending job to the queue
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if err := q.store.Enqueue(ctx, job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Kind: %s", job.Kind))
		err = errors.WithDetail(err, fmt.Sprintf("Repo: %s", job.RepoURL))
		return err
	}

	q.mu.RLock()
	q.notifySubscribers(job)
	q.mu.RUnlock()

	return nil
}

// Claim transitions the oldest claimable pending job to processing.
// Returns nil when no job matches the kind filter.
func (q *Queue) Claim(ctx context.Context, kinds ...JobKind) (*Job, error) {
	job, err := q.store.ClaimNext(ctx, kinds...)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	q.mu.RLock()
	q.notifySubscribers(job)
	q.mu.RUnlock()

	return job, nil
}

// MarkDone records successful completion and notifies subscribers.
func (q *Queue) MarkDone(ctx context.Context, job *Job) error {
	if err := q.store.Complete(ctx, job); err != nil {
		return err
	}

	q.mu.RLock()
	q.notifySubscribers(job)
	q.mu.RUnlock()

	return nil
}

// MarkFailed records a failure with its error message and notifies
// subscribers.
func (q *Queue) MarkFailed(ctx context.Context, job *Job, jobErr error) error {
	if err := q.store.Fail(ctx, job, jobErr); err != nil {
		return err
	}

	q.mu.RLock()
	q.notifySubscribers(job)
	q.mu.RUnlock()

	return nil
}

// GetJob retrieves a job by ID within the user's scope
func (q *Queue) GetJob(ctx context.Context, userID int64, id int64) (*Job, error) {
	return q.store.GetJob(ctx, userID, id)
}

// ListJobs returns the user's jobs newest-first
func (q *Queue) ListJobs(ctx context.Context, userID int64, status *JobStatus, limit int) ([]*Job, error) {
	return q.store.ListJobs(ctx, userID, status, limit)
}

// Counts returns job counts per status across all users
func (q *Queue) Counts(ctx context.Context) (map[JobStatus]int, error) {
	return q.store.Counts(ctx)
}

// HasActive reports whether a pending or processing job of the given kind
// exists for the user and repository
func (q *Queue) HasActive(ctx context.Context, userID int64, repoURL string, kind JobKind) (bool, error) {
	return q.store.HasActive(ctx, userID, repoURL, kind)
}

// RequeueStale sweeps over-age processing jobs back to pending
func (q *Queue) RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	return q.store.RequeueStale(ctx, staleAfter)
}

// Subscribe returns a channel that receives every job state transition.
// The channel is buffered; slow consumers miss events rather than stall
// the pipeline.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the queue.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed. This prevents double-close
// panics.
func (q *Queue) Unsubscribe(ch chan *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			return
		}
	}
}

// notifySubscribers sends job updates to all subscribers.
// REQUIRES: q.mu must be held by caller (either Lock or RLock).
// Uses non-blocking send to avoid stalling if a subscriber is slow.
func (q *Queue) notifySubscribers(job *Job) {
	for _, ch := range q.subscribers {
		select {
		case ch <- job:
		default:
			// Channel full, skip
		}
	}
}
