package async

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/sym"
)

// pulseLogger wraps zap.SugaredLogger with special methods for pulse
// lifecycle events. Uses different log levels to create visual
// distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
// - INFO level → PULSE (general worker operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.PulseOpen+" "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw(sym.PulseClose+" "+msg, keysAndValues...)
}

// Pulse logs general worker operations
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(sym.Pulse+" "+msg, keysAndValues...)
}

// Config contains worker pool tuning knobs
type Config struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often each worker checks for new jobs
	StaleAfter   time.Duration `json:"stale_after"`   // Age at which a processing lease is considered orphaned
}

// DefaultConfig returns sensible defaults. Two workers is enough to keep
// a git mine from starving an index ingest without saturating clone
// bandwidth.
func DefaultConfig() Config {
	return Config{
		Workers:      2,
		PollInterval: 5 * time.Second,
		StaleAfter:   30 * time.Minute,
	}
}

// WorkerPool manages a pool of workers that claim and execute async jobs.
type WorkerPool struct {
	queue      *Queue
	dispatcher *Dispatcher
	config     Config
	parentCtx  context.Context // Parent context from which worker context is derived
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     pulseLogger

	mu            sync.Mutex
	activeWorkers int       // Workers currently executing a job
	jobsProcessed int       // Terminal transitions since Start
	startTime     time.Time // When the pool started
}

// NewWorkerPool creates a worker pool over the given database.
// IMPORTANT: Callers must register handlers on the dispatcher before
// calling Start().
func NewWorkerPool(db *sql.DB, cfg Config, dispatcher *Dispatcher, logger *zap.SugaredLogger) *WorkerPool {
	return NewWorkerPoolWithContext(context.Background(), db, cfg, dispatcher, logger)
}

// NewWorkerPoolWithContext creates a worker pool with a custom parent
// context. Cancelling the parent stops the workers; the server uses this
// for shutdown coordination.
func NewWorkerPoolWithContext(ctx context.Context, db *sql.DB, cfg Config, dispatcher *Dispatcher, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &WorkerPool{
		queue:      NewQueue(db),
		dispatcher: dispatcher,
		config:     cfg,
		parentCtx:  ctx,
		ctx:        workerCtx,
		cancel:     cancel,
		logger:     pulseLogger{logger.Named("pulse")},
	}
}

// Queue returns the pool's queue for enqueue and subscription access.
func (wp *WorkerPool) Queue() *Queue {
	return wp.queue
}

// Start sweeps stale leases back to pending and then begins processing.
// ✿ Opening: stale recovery must run before the first claim so crashed
// jobs rejoin the queue in their original positions.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	// If the pool was stopped and restarted, recreate the worker context
	// from the parent before spawning workers to avoid races.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Starting("Recreated worker context after previous shutdown")
	default:
	}
	wp.startTime = time.Now()
	wp.jobsProcessed = 0
	wp.mu.Unlock()

	swept, err := wp.queue.RequeueStale(wp.ctx, wp.config.StaleAfter)
	if err != nil {
		wp.logger.SugaredLogger.Warnw("Failed to requeue stale jobs", "error", err)
		// Continue starting workers even if the sweep fails
	} else if swept > 0 {
		wp.logger.Starting("Requeued stale jobs from previous run",
			"count", swept,
			"stale_after", wp.config.StaleAfter,
		)
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.SugaredLogger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.config.Workers)
	}

	for i := 0; i < wp.config.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Starting("Worker pool started",
		"workers", wp.config.Workers,
		"poll_interval", wp.config.PollInterval,
		"kinds", wp.dispatcher.Kinds(),
	)
}

// Stop gracefully stops the worker pool.
// ❀ Closing: workers finish their current job and exit on context
// cancellation. Uses a 30-second timeout so a long clone cannot block
// shutdown indefinitely.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := 30 * time.Second
	select {
	case <-done:
		wp.logger.Pulse("Worker pool stopped - all workers exited cleanly")
	case <-time.After(timeout):
		wp.logger.Closing("Worker pool stop timeout - workers may still be finishing", "timeout", timeout)
	}
}

// worker claims and processes jobs until the pool context is cancelled
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	ticker := time.NewTicker(wp.config.PollInterval)
	defer ticker.Stop()

	// Error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Shutting down - exit silently
					return
				default:
					if errors.Is(err, sql.ErrConnDone) {
						// Database closed during shutdown
						return
					}
					errorCount++
					wp.logger.SugaredLogger.Errorw("Worker error processing job",
						"worker_id", id,
						"error", err,
						"consecutive_errors", errorCount)

					if errorCount >= maxConsecutiveErrors {
						wp.logger.SugaredLogger.Warnw("Worker backing off due to consecutive errors",
							"worker_id", id,
							"backoff", backoffDuration,
							"consecutive_errors", errorCount)
						time.Sleep(backoffDuration)
						backoffDuration = min(backoffDuration*2, maxBackoff)
					}
				}
			} else {
				if errorCount > 0 {
					wp.logger.SugaredLogger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob claims the next job the dispatcher can run and executes
// it. Returns nil when the queue is empty. Handler failures are recorded
// on the job and do not count as worker errors.
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil
	default:
	}

	job, err := wp.queue.Claim(wp.ctx, wp.dispatcher.Kinds()...)
	if err != nil {
		return errors.Wrap(err, "failed to claim job")
	}
	if job == nil {
		return nil
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()

	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.jobsProcessed++
		wp.mu.Unlock()
	}()

	wp.logger.Pulse("Processing job",
		"job_id", job.ID,
		"kind", job.Kind,
		"repo_url", job.RepoURL,
		"user_id", job.UserID,
	)

	if handlerErr := wp.dispatcher.Dispatch(wp.ctx, job); handlerErr != nil {
		wp.logger.SugaredLogger.Errorw("Job failed",
			"job_id", job.ID,
			"kind", job.Kind,
			"duration", job.Duration(),
			"error", handlerErr,
		)
		if err := wp.queue.MarkFailed(wp.ctx, job, handlerErr); err != nil {
			return errors.Wrapf(err, "failed to record failure of job %d", job.ID)
		}
		return nil
	}

	if err := wp.queue.MarkDone(wp.ctx, job); err != nil {
		return errors.Wrapf(err, "failed to record completion of job %d", job.ID)
	}

	// Spooled payload bytes are only removed after success; failed jobs
	// keep theirs so a requeue or postmortem still has the input.
	if job.PayloadPath != "" {
		if err := os.Remove(job.PayloadPath); err != nil && !os.IsNotExist(err) {
			wp.logger.SugaredLogger.Warnw("Failed to remove job payload file",
				"job_id", job.ID,
				"payload_path", job.PayloadPath,
				"error", err,
			)
		}
	}

	wp.logger.Pulse("Job complete",
		"job_id", job.ID,
		"kind", job.Kind,
		"duration", job.Duration(),
	)

	return nil
}
