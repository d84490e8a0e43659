package async

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/OPTIX/errors"
	optixtest "github.com/teranos/OPTIX/internal/testing"
)

// receiveEvent reads one job event with a timeout so a missing
// notification fails the test instead of hanging it.
func receiveEvent(t *testing.T, ch chan *Job) *Job {
	t.Helper()
	select {
	case job := <-ch:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job event")
		return nil
	}
}

func TestQueueNotifiesSubscribersOnTransitions(t *testing.T) {
	conn := optixtest.CreateTestDB(t)
	queue := NewQueue(conn)
	ctx := context.Background()

	events := queue.Subscribe()
	defer queue.Unsubscribe(events)

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, queue.Enqueue(ctx, job))
	ev := receiveEvent(t, events)
	assert.Equal(t, job.ID, ev.ID)
	assert.Equal(t, JobStatusPending, ev.Status)

	claimed, err := queue.Claim(ctx, KindGraphBuild)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	ev = receiveEvent(t, events)
	assert.Equal(t, JobStatusProcessing, ev.Status)

	require.NoError(t, queue.MarkDone(ctx, claimed))
	ev = receiveEvent(t, events)
	assert.Equal(t, JobStatusDone, ev.Status)
	assert.Empty(t, ev.Error)
}

func TestQueueNotifiesFailure(t *testing.T) {
	conn := optixtest.CreateTestDB(t)
	queue := NewQueue(conn)
	ctx := context.Background()

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGitMine)
	require.NoError(t, queue.Enqueue(ctx, job))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	events := queue.Subscribe()
	defer queue.Unsubscribe(events)

	require.NoError(t, queue.MarkFailed(ctx, claimed, errors.New("shallow clone rejected")))
	ev := receiveEvent(t, events)
	assert.Equal(t, JobStatusFailed, ev.Status)
	assert.Equal(t, "shallow clone rejected", ev.Error)
}

func TestQueueUnsubscribeStopsDelivery(t *testing.T) {
	conn := optixtest.CreateTestDB(t)
	queue := NewQueue(conn)
	ctx := context.Background()

	events := queue.Subscribe()
	queue.Unsubscribe(events)

	job := mustNewJob(t, 1, "https://github.com/acme/widgets", KindGraphBuild)
	require.NoError(t, queue.Enqueue(ctx, job))

	select {
	case ev := <-events:
		t.Fatalf("received event %v after unsubscribe", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueueClaimEmptyDoesNotNotify(t *testing.T) {
	conn := optixtest.CreateTestDB(t)
	queue := NewQueue(conn)

	events := queue.Subscribe()
	defer queue.Unsubscribe(events)

	claimed, err := queue.Claim(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)

	select {
	case <-events:
		t.Fatal("empty claim must not produce an event")
	case <-time.After(100 * time.Millisecond):
	}
}
