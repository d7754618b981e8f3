package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/repository"
	"docqa-be/pkg/queue"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/vectorstore"
)

const (
	defaultPriority  = 5
	defaultTimeoutMs = 60000
)

// JobEnqueuer is the slice of the queue client the API needs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (string, error)
	Status(ctx context.Context, jobId string) (*queue.Snapshot, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// Answerer is the slice of the pipeline the API needs.
type Answerer interface {
	Answer(ctx context.Context, userId, question string, opts rag.Options) (*rag.AnswerRecord, error)
	AnswerForFile(ctx context.Context, userId, fileId, question string, opts rag.Options) (*rag.AnswerRecord, error)
}

type AskOutcome struct {
	Enqueued *dto.EnqueueResponse
	Answer   *dto.SyncAnswerResponse
}

type IRagService interface {
	Ask(ctx context.Context, userId string, req dto.AskRequest) (*AskOutcome, error)
	AskSync(ctx context.Context, userId string, req dto.AskRequest) (*dto.SyncAnswerResponse, error)
	AskFile(ctx context.Context, userId, fileId string, req dto.AskRequest) (*AskOutcome, error)
	Status(ctx context.Context, jobId string) (*queue.Snapshot, error)
	Stats(ctx context.Context, userId string) (*dto.StatsResponse, error)
}

type ragService struct {
	jobs     JobEnqueuer
	pipeline Answerer
	files    repository.IFileRepository
	vectors  vectorstore.Store
	logger   logger.ILogger
}

func NewRagService(jobs JobEnqueuer, pipeline Answerer, files repository.IFileRepository, vectors vectorstore.Store, sysLogger logger.ILogger) IRagService {
	return &ragService{
		jobs:     jobs,
		pipeline: pipeline,
		files:    files,
		vectors:  vectors,
		logger:   sysLogger,
	}
}

func (s *ragService) Ask(ctx context.Context, userId string, req dto.AskRequest) (*AskOutcome, error) {
	return s.enqueueOrFallback(ctx, userId, "", req)
}

func (s *ragService) AskFile(ctx context.Context, userId, fileId string, req dto.AskRequest) (*AskOutcome, error) {
	// Ownership gate. Not-owned and not-found look identical to the caller
	// so file ids cannot be probed.
	if _, err := s.files.FindOwned(ctx, fileId, userId); err != nil {
		return nil, err
	}
	return s.enqueueOrFallback(ctx, userId, fileId, req)
}

func (s *ragService) enqueueOrFallback(ctx context.Context, userId, fileId string, req dto.AskRequest) (*AskOutcome, error) {
	priority := req.Priority
	if priority <= 0 {
		priority = defaultPriority
	}

	taskType := queue.TaskRagQuery
	if fileId != "" {
		taskType = queue.TaskRagQueryFile
	}

	job := queue.NewJob(taskType, queue.ClassRAG, priority, defaultTimeoutMs, queue.Payload{
		UserId:   userId,
		Question: req.Question,
		TopK:     req.TopK,
		MinScore: req.MinScore,
		FileId:   fileId,
	})

	jobId, err := s.jobs.Enqueue(ctx, job)
	if err == nil {
		s.logger.Info("rag", "question enqueued", map[string]interface{}{
			"jobId": jobId, "taskType": taskType, "priority": priority,
		})
		return &AskOutcome{Enqueued: &dto.EnqueueResponse{
			JobId:     jobId,
			StatusUrl: fmt.Sprintf("/api/rag/status/%s", jobId),
		}}, nil
	}

	if !errors.Is(err, queue.ErrUnavailable) {
		return nil, err
	}

	// Queue is down. Answer inline so the user still gets served.
	s.logger.Warn("rag", "queue unavailable, answering synchronously", map[string]interface{}{
		"error": err.Error(),
	})
	answer, err := s.answerInline(ctx, userId, fileId, req)
	if err != nil {
		return nil, err
	}
	answer.Fallback = true
	return &AskOutcome{Answer: answer}, nil
}

func (s *ragService) AskSync(ctx context.Context, userId string, req dto.AskRequest) (*dto.SyncAnswerResponse, error) {
	return s.answerInline(ctx, userId, "", req)
}

func (s *ragService) answerInline(ctx context.Context, userId, fileId string, req dto.AskRequest) (*dto.SyncAnswerResponse, error) {
	started := time.Now()
	requestId := uuid.NewString()

	opts := rag.Options{
		Mode:     req.Mode,
		TopK:     req.TopK,
		MinScore: req.MinScore,
	}

	var record *rag.AnswerRecord
	var err error
	if fileId != "" {
		record, err = s.pipeline.AnswerForFile(ctx, userId, fileId, req.Question, opts)
	} else {
		record, err = s.pipeline.Answer(ctx, userId, req.Question, opts)
	}
	if err != nil {
		return nil, err
	}

	metadata := record.Metadata
	metadata.DurationMs = time.Since(started).Milliseconds()

	s.logger.Info("rag", "question answered synchronously", map[string]interface{}{
		"requestId":  requestId,
		"durationMs": metadata.DurationMs,
		"cacheHit":   metadata.CacheHit,
	})

	return &dto.SyncAnswerResponse{
		RequestId: requestId,
		Answer:    record.Answer,
		Sources:   record.Sources,
		Metadata:  metadata,
	}, nil
}

func (s *ragService) Status(ctx context.Context, jobId string) (*queue.Snapshot, error) {
	return s.jobs.Status(ctx, jobId)
}

func (s *ragService) Stats(ctx context.Context, userId string) (*dto.StatsResponse, error) {
	totalVectors, err := s.vectors.Count(ctx, vectorstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	fileNames, err := s.files.ListFileNames(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	// Queue depths are best effort. A down queue should not hide the
	// vector-store numbers.
	queues, err := s.jobs.Stats(ctx)
	if err != nil {
		if !errors.Is(err, queue.ErrUnavailable) {
			return nil, err
		}
		queues = nil
	}

	return &dto.StatsResponse{
		TotalVectors:   totalVectors,
		UserFiles:      len(fileNames),
		CollectionName: s.vectors.CollectionName(),
		VectorSize:     s.vectors.VectorSize(),
		Queues:         queues,
	}, nil
}
