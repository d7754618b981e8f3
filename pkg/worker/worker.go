package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"docqa-be/pkg/queue"
	"docqa-be/pkg/rag"
)

const (
	DefaultPollInterval      = 1000 * time.Millisecond
	DefaultHeartbeatInterval = 5000 * time.Millisecond
)

// JobQueue is the slice of the queue client the worker needs.
type JobQueue interface {
	Claim(ctx context.Context, workerType, workerId string) (*queue.Job, error)
	Heartbeat(ctx context.Context, jobId, workerId string) error
	UpdateProgress(ctx context.Context, jobId string, progress, chunksProcessed int) error
	Complete(ctx context.Context, jobId, workerId string, result any) error
	Fail(ctx context.Context, jobId, workerId, errorMessage string) error
}

// Answerer is the slice of the pipeline the worker needs.
type Answerer interface {
	Answer(ctx context.Context, userId, question string, opts rag.Options) (*rag.AnswerRecord, error)
	AnswerForFile(ctx context.Context, userId, fileId, question string, opts rag.Options) (*rag.AnswerRecord, error)
}

type Config struct {
	WorkerId          string
	WorkerType        string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Worker claims one job at a time and runs it to completion. It reports
// liveness through heartbeats; enforcing job timeouts is the reaper's
// responsibility, never the worker's own.
type Worker struct {
	cfg      Config
	queue    JobQueue
	pipeline Answerer

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func New(cfg Config, jobQueue JobQueue, pipeline Answerer) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.WorkerType == "" {
		cfg.WorkerType = queue.ClassAny
	}
	return &Worker{
		cfg:      cfg,
		queue:    jobQueue,
		pipeline: pipeline,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run polls for jobs until Stop is called. A job in flight finishes before
// Run returns.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	log.Printf("[INFO] worker %s (%s) started", w.cfg.WorkerId, w.cfg.WorkerType)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			log.Printf("[INFO] worker %s stopping", w.cfg.WorkerId)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Stop signals Run to exit and waits for the current job to finish.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) poll(ctx context.Context) {
	job, err := w.queue.Claim(ctx, w.cfg.WorkerType, w.cfg.WorkerId)
	if err != nil {
		if errors.Is(err, queue.ErrNoJob) {
			return
		}
		log.Printf("[WARN] worker %s claim failed: %v", w.cfg.WorkerId, err)
		return
	}

	w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	log.Printf("[INFO] worker %s picked up job %s (%s)", w.cfg.WorkerId, job.JobId, job.TaskType)

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeatLoop(heartbeatCtx, job.JobId)

	if err := w.queue.UpdateProgress(ctx, job.JobId, 10, 0); err != nil {
		log.Printf("[WARN] progress update failed for job %s: %v", job.JobId, err)
	}

	result, err := w.execute(ctx, job)

	// Terminal transitions happen here, at the loop boundary, so a panic
	// or crash mid-job leaves the job running for the reaper to reclaim.
	if err != nil {
		log.Printf("[ERROR] job %s failed: %v", job.JobId, err)
		if failErr := w.queue.Fail(ctx, job.JobId, w.cfg.WorkerId, err.Error()); failErr != nil {
			log.Printf("[ERROR] could not mark job %s failed: %v", job.JobId, failErr)
		}
		return
	}

	if err := w.queue.Complete(ctx, job.JobId, w.cfg.WorkerId, result); err != nil {
		log.Printf("[ERROR] could not mark job %s completed: %v", job.JobId, err)
		return
	}
	log.Printf("[INFO] job %s completed", job.JobId)
}

func (w *Worker) execute(ctx context.Context, job *queue.Job) (*rag.AnswerRecord, error) {
	opts := rag.Options{
		TopK:     job.Payload.TopK,
		MinScore: job.Payload.MinScore,
	}

	switch job.TaskType {
	case queue.TaskRagQuery:
		record, err := w.pipeline.Answer(ctx, job.Payload.UserId, job.Payload.Question, opts)
		if err != nil {
			return nil, err
		}
		w.reportRetrieval(ctx, job.JobId, record)
		return record, nil
	case queue.TaskRagQueryFile:
		record, err := w.pipeline.AnswerForFile(ctx, job.Payload.UserId, job.Payload.FileId, job.Payload.Question, opts)
		if err != nil {
			return nil, err
		}
		w.reportRetrieval(ctx, job.JobId, record)
		return record, nil
	default:
		return nil, errors.New("unsupported task type: " + job.TaskType)
	}
}

func (w *Worker) reportRetrieval(ctx context.Context, jobId string, record *rag.AnswerRecord) {
	if err := w.queue.UpdateProgress(ctx, jobId, 90, record.Metadata.ChunksRetrieved); err != nil {
		log.Printf("[WARN] progress update failed for job %s: %v", jobId, err)
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context, jobId string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, jobId, w.cfg.WorkerId); err != nil {
				log.Printf("[WARN] heartbeat failed for job %s: %v", jobId, err)
			}
		}
	}
}
