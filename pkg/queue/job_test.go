package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEnvelope(t *testing.T) {
	job := NewJob(TaskRagQuery, ClassRAG, 5, 60000, Payload{
		UserId:   "user-1",
		Question: "what is rrf?",
		TopK:     5,
		MinScore: 0.3,
	})

	assert.NotEmpty(t, job.JobId)
	assert.Equal(t, "rag-api", job.Metadata.Source)
	assert.NotEmpty(t, job.Metadata.CreatedAt)
}

func TestJobWireFormatIsSnakeCase(t *testing.T) {
	job := &Job{
		JobId:     "abc-123",
		TaskType:  TaskRagQueryFile,
		Requires:  ClassRAG,
		Priority:  7,
		TimeoutMs: 30000,
		Payload: Payload{
			UserId:   "user-1",
			Question: "summarize",
			TopK:     5,
			FileId:   "file-9",
		},
		Metadata: Metadata{Source: "rag-api", CreatedAt: "2026-01-02T03:04:05Z"},
	}

	encoded, err := json.Marshal(job)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(encoded, &raw))

	// Envelope keys are snake_case (shared with non-Go workers); payload
	// keys keep the source's camelCase.
	for _, key := range []string{"job_id", "task_type", "requires", "priority", "payload", "timeout_ms", "metadata"} {
		assert.Contains(t, raw, key)
	}
	payload := raw["payload"].(map[string]any)
	for _, key := range []string{"userId", "question", "topK", "minScore", "fileId"} {
		assert.Contains(t, payload, key)
	}
	metadata := raw["metadata"].(map[string]any)
	assert.Contains(t, metadata, "created_at")

	var decoded Job
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, *job, decoded)
}

func TestKeySchema(t *testing.T) {
	assert.Equal(t, "job:42", jobKey("42"))
	assert.Equal(t, "queue:rag", queueKey(ClassRAG))
	assert.Equal(t, "running:worker-1", runningKey("worker-1"))
}
