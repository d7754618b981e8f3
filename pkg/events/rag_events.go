package events

import "time"

// Event type codes published on the bus.
const (
	RAG_ANSWER_READY = "RAG_ANSWER_READY"
	JOB_FAILED       = "JOB_FAILED"
)

// NewAnswerReadyEvent is emitted once a queued question has been answered
// and its result stored on the job hash.
func NewAnswerReadyEvent(jobId, userId string, chunksRetrieved int) Event {
	return BaseEvent{
		Type: RAG_ANSWER_READY,
		Data: map[string]interface{}{
			"jobId":           jobId,
			"userId":          userId,
			"chunksRetrieved": chunksRetrieved,
		},
		OccurredAt: time.Now(),
	}
}

// NewJobFailedEvent is emitted when a job reaches the failed state.
func NewJobFailedEvent(jobId, userId, reason string) Event {
	return BaseEvent{
		Type: JOB_FAILED,
		Data: map[string]interface{}{
			"jobId":  jobId,
			"userId": userId,
			"reason": reason,
		},
		OccurredAt: time.Now(),
	}
}
