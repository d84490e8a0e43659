package async

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	optixtest "github.com/teranos/OPTIX/internal/testing"
)

func testPoolConfig() Config {
	return Config{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		StaleAfter:   30 * time.Minute,
	}
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// waitForStatus polls until the job reaches the wanted status or the
// deadline passes.
func waitForStatus(t *testing.T, store *Store, userID, jobID int64, want JobStatus) *Job {
	t.Helper()
	var got *Job
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), userID, jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %d never reached %s", jobID, want)
	return got
}

func TestWorkerPoolProcessesJob(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{kind: KindGraphBuild}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, pool.Queue().Store(), 1, job.ID, JobStatusDone)
	assert.Empty(t, done.Error)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.FinishedAt)
	require.Len(t, handler.handled, 1)
}

func TestWorkerPoolRecordsHandlerFailure(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{
		kind: KindGitMine,
		err:  errors.New("repository unavailable: dial tcp refused\nstack detail"),
	}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGitMine)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	failed := waitForStatus(t, pool.Queue().Store(), 1, job.ID, JobStatusFailed)
	assert.Equal(t, "repository unavailable: dial tcp refused", failed.Error)
	require.NotNil(t, failed.FinishedAt)
}

func TestWorkerPoolRemovesPayloadFileOnSuccess(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{kind: KindScipIndex}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())

	payloadPath := filepath.Join(t.TempDir(), "scip-payload.bin")
	require.NoError(t, os.WriteFile(payloadPath, []byte("index bytes"), 0o644))

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindScipIndex).WithPayloadPath(payloadPath)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.Queue().Store(), 1, job.ID, JobStatusDone)

	// Removal happens just after the status write lands
	require.Eventually(t, func() bool {
		_, err := os.Stat(payloadPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "payload file should be removed after success")
}

func TestWorkerPoolKeepsPayloadFileOnFailure(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{kind: KindScipIndex, err: errors.New("malformed index")}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())

	payloadPath := filepath.Join(t.TempDir(), "scip-payload.bin")
	require.NoError(t, os.WriteFile(payloadPath, []byte("index bytes"), 0o644))

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindScipIndex).WithPayloadPath(payloadPath)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.Queue().Store(), 1, job.ID, JobStatusFailed)

	// Failed jobs keep their input for requeue or postmortem
	_, err := os.Stat(payloadPath)
	assert.NoError(t, err, "payload file should survive a failed run")
}

func TestWorkerPoolLeavesUnregisteredKindsAlone(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(&stubHandler{kind: KindGraphBuild}))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindScipIndex)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	// Give the pool a few poll cycles; the scip job must stay pending
	time.Sleep(100 * time.Millisecond)
	got, err := pool.Queue().GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, got.Status)
}

func TestWorkerPoolSweepsStaleLeasesOnStart(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{kind: KindGraphBuild}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())
	store := pool.Queue().Store()

	// Simulate a job orphaned by a crash: processing with an hour-old lease
	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, store.Enqueue(context.Background(), job))
	_, err := conn.Exec(
		"UPDATE async_jobs SET status = ?, started_at = ? WHERE id = ?",
		JobStatusProcessing, time.Now().UTC().Add(-time.Hour), job.ID,
	)
	require.NoError(t, err)

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, store, 1, job.ID, JobStatusDone)
	require.Len(t, handler.handled, 1, "swept job was re-claimed and executed")
}

func TestWorkerPoolStopIsClean(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(&stubHandler{kind: KindGraphBuild}))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())
	pool.Start()
	pool.Stop()

	// After Stop, enqueued jobs are not picked up
	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))
	time.Sleep(50 * time.Millisecond)

	got, err := pool.Queue().GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, got.Status)
}

func TestWorkerPoolRestartAfterStop(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	handler := &stubHandler{kind: KindGraphBuild}
	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(handler))

	pool := NewWorkerPool(conn, testPoolConfig(), dispatcher, testLogger())
	pool.Start()
	pool.Stop()

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, pool.Queue().Enqueue(context.Background(), job))

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.Queue().Store(), 1, job.ID, JobStatusDone)
}

func TestGetSystemMetrics(t *testing.T) {
	conn := optixtest.CreateTestDB(t)

	dispatcher := NewDispatcher()
	require.NoError(t, dispatcher.Register(&stubHandler{kind: KindGraphBuild}))

	cfg := testPoolConfig()
	cfg.Workers = 3
	pool := NewWorkerPool(conn, cfg, dispatcher, testLogger())

	for i := 0; i < 2; i++ {
		require.NoError(t, pool.Queue().Enqueue(context.Background(), mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)))
	}

	metrics := pool.GetSystemMetrics(context.Background())
	assert.Equal(t, 3, metrics.WorkersTotal)
	assert.Equal(t, 0, metrics.WorkersActive)
	assert.Equal(t, 2, metrics.JobsQueued)
	assert.Equal(t, 0, metrics.JobsRunning)
}

func TestCalculateSafeWorkerCount(t *testing.T) {
	testCases := []struct {
		name        string
		availableGB float64
		expected    int
	}{
		{"very low memory", 1.0, 1},
		{"just above buffer", 2.5, 1},
		{"moderate memory", 6.0, 4},
		{"plenty of memory", 64.0, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, calculateSafeWorkerCount(tc.availableGB))
		})
	}
}
