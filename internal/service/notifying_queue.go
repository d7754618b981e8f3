package service

import (
	"context"
	"log"
	"sync"

	"docqa-be/pkg/queue"
	"docqa-be/pkg/rag"
)

// NotifyingQueue decorates the queue client so terminal job transitions
// also publish on the answered topic. Notification failures never fail the
// job itself.
type NotifyingQueue struct {
	inner     *queue.Client
	publisher IPublisherService

	mu    sync.Mutex
	users map[string]string // jobId -> userId, captured at claim time
}

func NewNotifyingQueue(inner *queue.Client, publisher IPublisherService) *NotifyingQueue {
	return &NotifyingQueue{
		inner:     inner,
		publisher: publisher,
		users:     make(map[string]string),
	}
}

func (q *NotifyingQueue) Claim(ctx context.Context, workerType, workerId string) (*queue.Job, error) {
	job, err := q.inner.Claim(ctx, workerType, workerId)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.users[job.JobId] = job.Payload.UserId
	q.mu.Unlock()
	return job, nil
}

func (q *NotifyingQueue) Heartbeat(ctx context.Context, jobId, workerId string) error {
	return q.inner.Heartbeat(ctx, jobId, workerId)
}

func (q *NotifyingQueue) UpdateProgress(ctx context.Context, jobId string, progress, chunksProcessed int) error {
	return q.inner.UpdateProgress(ctx, jobId, progress, chunksProcessed)
}

func (q *NotifyingQueue) Complete(ctx context.Context, jobId, workerId string, result any) error {
	if err := q.inner.Complete(ctx, jobId, workerId, result); err != nil {
		return err
	}

	userId := q.takeUser(jobId)
	record, ok := result.(*rag.AnswerRecord)
	if !ok {
		record = &rag.AnswerRecord{}
	}
	if err := q.publisher.PublishAnswered(jobId, userId, record); err != nil {
		log.Printf("[WARN] answered notification failed for job %s: %v", jobId, err)
	}
	return nil
}

func (q *NotifyingQueue) Fail(ctx context.Context, jobId, workerId, errorMessage string) error {
	if err := q.inner.Fail(ctx, jobId, workerId, errorMessage); err != nil {
		return err
	}

	userId := q.takeUser(jobId)
	if err := q.publisher.PublishFailed(jobId, userId, errorMessage); err != nil {
		log.Printf("[WARN] failure notification failed for job %s: %v", jobId, err)
	}
	return nil
}

func (q *NotifyingQueue) takeUser(jobId string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	userId := q.users[jobId]
	delete(q.users, jobId)
	return userId
}
