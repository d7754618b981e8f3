package queue

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("Skipping integration test: REDIS_HOST not set")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	client := NewClient(Config{Host: host, Port: port}, log.New(os.Stdout, "[queue-test] ", log.LstdFlags))
	if !client.Healthy(context.Background()) {
		t.Skip("Skipping integration test: redis not reachable")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPriorityOrdering(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	low := NewJob(TaskRagQuery, ClassRAG, 3, 60000, Payload{UserId: "u", Question: "low"})
	high := NewJob(TaskRagQuery, ClassRAG, 9, 60000, Payload{UserId: "u", Question: "high"})

	_, err := client.Enqueue(ctx, low)
	require.NoError(t, err)
	_, err = client.Enqueue(ctx, high)
	require.NoError(t, err)

	first, err := client.Claim(ctx, ClassRAG, "worker-it-1")
	require.NoError(t, err)
	assert.Equal(t, high.JobId, first.JobId)

	second, err := client.Claim(ctx, ClassRAG, "worker-it-1")
	require.NoError(t, err)
	assert.Equal(t, low.JobId, second.JobId)

	require.NoError(t, client.Complete(ctx, first.JobId, "worker-it-1", map[string]string{"ok": "1"}))
	require.NoError(t, client.Complete(ctx, second.JobId, "worker-it-1", map[string]string{"ok": "1"}))
}

func TestClaimExclusionAndLifecycle(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	job := NewJob(TaskRagQuery, ClassRAG, 5, 60000, Payload{UserId: "u", Question: "q"})
	_, err := client.Enqueue(ctx, job)
	require.NoError(t, err)

	claimed, err := client.Claim(ctx, ClassRAG, "worker-a")
	require.NoError(t, err)
	require.Equal(t, job.JobId, claimed.JobId)

	// A second claimer must not receive the same job.
	other, err := client.Claim(ctx, ClassRAG, "worker-b")
	if err == nil {
		assert.NotEqual(t, job.JobId, other.JobId)
		_ = client.Fail(ctx, other.JobId, "worker-b", "test cleanup")
	} else {
		assert.ErrorIs(t, err, ErrNoJob)
	}

	snapshot, err := client.Status(ctx, job.JobId)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snapshot.Status)
	assert.Equal(t, "worker-a", snapshot.WorkerId)

	// The running hash makes the claim reconstructable for reaper tooling.
	held, err := client.OrphanScan(ctx, "worker-a")
	require.NoError(t, err)
	found := false
	for _, entry := range held {
		if entry.JobId == job.JobId {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, client.UpdateProgress(ctx, job.JobId, 10, 0))
	require.NoError(t, client.Heartbeat(ctx, job.JobId, "worker-a"))
	require.NoError(t, client.Complete(ctx, job.JobId, "worker-a", map[string]any{"answer": "done"}))

	snapshot, err = client.Status(ctx, job.JobId)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
	assert.NotNil(t, snapshot.Result)

	held, err = client.OrphanScan(ctx, "worker-a")
	require.NoError(t, err)
	for _, entry := range held {
		assert.NotEqual(t, job.JobId, entry.JobId)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	client := integrationClient(t)
	_, err := client.Status(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound))
}
