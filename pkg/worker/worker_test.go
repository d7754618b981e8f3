package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-be/pkg/queue"
	"docqa-be/pkg/rag"
)

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	heartbeats int
	progress   []int
	completed  []string
	failed     map[string]string
}

func newFakeQueue(jobs ...*queue.Job) *fakeQueue {
	return &fakeQueue{jobs: jobs, failed: map[string]string{}}
}

func (f *fakeQueue) Claim(ctx context.Context, workerType, workerId string) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil, queue.ErrNoJob
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeQueue) Heartbeat(ctx context.Context, jobId, workerId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeQueue) UpdateProgress(ctx context.Context, jobId string, progress, chunksProcessed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
	return nil
}

func (f *fakeQueue) Complete(ctx context.Context, jobId, workerId string, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobId)
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, jobId, workerId, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[jobId] = errorMessage
	return nil
}

type fakeAnswerer struct {
	record *rag.AnswerRecord
	err    error

	mu       sync.Mutex
	lastFile string
}

func (f *fakeAnswerer) Answer(ctx context.Context, userId, question string, opts rag.Options) (*rag.AnswerRecord, error) {
	return f.record, f.err
}

func (f *fakeAnswerer) AnswerForFile(ctx context.Context, userId, fileId, question string, opts rag.Options) (*rag.AnswerRecord, error) {
	f.mu.Lock()
	f.lastFile = fileId
	f.mu.Unlock()
	return f.record, f.err
}

func ragJob(taskType string) *queue.Job {
	job := queue.NewJob(taskType, queue.ClassRAG, 5, 60000, queue.Payload{
		UserId:   "u1",
		Question: "what is the warranty",
		FileId:   "f1",
	})
	return job
}

func TestWorkerCompletesJob(t *testing.T) {
	q := newFakeQueue(ragJob(queue.TaskRagQuery))
	answerer := &fakeAnswerer{record: &rag.AnswerRecord{
		Answer:   "two years",
		Metadata: rag.Metadata{ChunksRetrieved: 3},
	}}

	w := New(Config{WorkerId: "w1", PollInterval: 10 * time.Millisecond}, q, answerer)
	go w.Run(context.Background())

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.completed) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, []int{10, 90}, q.progress)
	assert.Empty(t, q.failed)
}

func TestWorkerFailsJobOnPipelineError(t *testing.T) {
	job := ragJob(queue.TaskRagQuery)
	q := newFakeQueue(job)
	answerer := &fakeAnswerer{err: errors.New("embedding: service unavailable")}

	w := New(Config{WorkerId: "w1", PollInterval: 10 * time.Millisecond}, q, answerer)
	go w.Run(context.Background())

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.failed) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, "embedding: service unavailable", q.failed[job.JobId])
	assert.Empty(t, q.completed)
}

func TestWorkerRoutesFileScopedTask(t *testing.T) {
	q := newFakeQueue(ragJob(queue.TaskRagQueryFile))
	answerer := &fakeAnswerer{record: &rag.AnswerRecord{Answer: "ok"}}

	w := New(Config{WorkerId: "w1", PollInterval: 10 * time.Millisecond}, q, answerer)
	go w.Run(context.Background())

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.completed) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	answerer.mu.Lock()
	defer answerer.mu.Unlock()
	assert.Equal(t, "f1", answerer.lastFile)
}

func TestWorkerRejectsUnknownTaskType(t *testing.T) {
	job := ragJob("SOMETHING_ELSE")
	q := newFakeQueue(job)

	w := New(Config{WorkerId: "w1", PollInterval: 10 * time.Millisecond}, q, &fakeAnswerer{})
	go w.Run(context.Background())

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.failed) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Contains(t, q.failed[job.JobId], "unsupported task type")
}

func TestWorkerHeartbeatsWhileProcessing(t *testing.T) {
	q := newFakeQueue(ragJob(queue.TaskRagQuery))
	answerer := &fakeAnswerer{record: &rag.AnswerRecord{Answer: "slow"}}

	w := New(Config{
		WorkerId:          "w1",
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 5 * time.Millisecond,
	}, q, &slowAnswerer{inner: answerer, delay: 50 * time.Millisecond})
	go w.Run(context.Background())

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.completed) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Greater(t, q.heartbeats, 0)
}

type slowAnswerer struct {
	inner Answerer
	delay time.Duration
}

func (s *slowAnswerer) Answer(ctx context.Context, userId, question string, opts rag.Options) (*rag.AnswerRecord, error) {
	time.Sleep(s.delay)
	return s.inner.Answer(ctx, userId, question, opts)
}

func (s *slowAnswerer) AnswerForFile(ctx context.Context, userId, fileId, question string, opts rag.Options) (*rag.AnswerRecord, error) {
	time.Sleep(s.delay)
	return s.inner.AnswerForFile(ctx, userId, fileId, question, opts)
}
