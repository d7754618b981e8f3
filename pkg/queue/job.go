package queue

import (
	"time"

	"github.com/google/uuid"
)

// Task types shared with the polyglot workers.
const (
	TaskRagQuery     = "RAG_QUERY"
	TaskRagQueryFile = "RAG_QUERY_FILE"
	TaskProcessFile  = "PROCESS_FILE"
)

// Worker classes used as queue selectors.
const (
	ClassCPU = "cpu"
	ClassGPU = "gpu"
	ClassRAG = "rag"
	ClassAny = "any"
)

// Job statuses. Lifecycle: queued -> running -> (completed | failed).
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Payload carries the task-specific fields of a job. The JSON shape is part
// of the wire contract shared with non-Go workers.
type Payload struct {
	UserId   string  `json:"userId"`
	Question string  `json:"question"`
	TopK     int     `json:"topK"`
	MinScore float64 `json:"minScore"`
	FileId   string  `json:"fileId,omitempty"`
}

// Metadata records where and when the job was created.
type Metadata struct {
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

// Job is the envelope stored in the `payload` hash field, snake_case per the
// cross-language schema.
type Job struct {
	JobId     string   `json:"job_id"`
	TaskType  string   `json:"task_type"`
	Requires  string   `json:"requires"`
	Priority  int      `json:"priority"`
	Payload   Payload  `json:"payload"`
	TimeoutMs int      `json:"timeout_ms"`
	Metadata  Metadata `json:"metadata"`
}

// NewJob builds a job envelope with a fresh v4 id and creation metadata.
func NewJob(taskType, requires string, priority, timeoutMs int, payload Payload) *Job {
	return &Job{
		JobId:     uuid.NewString(),
		TaskType:  taskType,
		Requires:  requires,
		Priority:  priority,
		Payload:   payload,
		TimeoutMs: timeoutMs,
		Metadata: Metadata{
			Source:    "rag-api",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Snapshot is the mutable execution state of a job as read back from Redis.
type Snapshot struct {
	JobId           string `json:"jobId"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	ChunksProcessed int    `json:"chunksProcessed"`
	CreatedAt       string `json:"createdAt,omitempty"`
	StartedAt       string `json:"startedAt,omitempty"`
	CompletedAt     string `json:"completedAt,omitempty"`
	FailedAt        string `json:"failedAt,omitempty"`
	LastHeartbeat   string `json:"lastHeartbeat,omitempty"`
	WorkerId        string `json:"workerId,omitempty"`
	Error           string `json:"error,omitempty"`
	Result          any    `json:"result,omitempty"`
}
