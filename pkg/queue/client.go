package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors surfaced to callers.
var (
	// ErrUnavailable means Redis is down; the HTTP surface falls back to
	// synchronous execution and never shows this to the client.
	ErrUnavailable = errors.New("queue: redis unavailable")
	// ErrNoJob means no queue had a claimable job.
	ErrNoJob = errors.New("queue: no job available")
	// ErrNotFound means the job id has no hash in Redis.
	ErrNotFound = errors.New("queue: job not found")
)

// Availability tri-state, edge-triggered by operation outcomes.
const (
	stateUnknown int32 = iota
	stateUp
	stateDown
)

type Config struct {
	Host string
	Port string
}

// Client is the Redis-backed priority queue shared across polyglot workers.
// Key schema is fixed for cross-language compatibility:
//
//	job:<id>            hash of job state
//	queue:<requires>    sorted set of job ids keyed by -priority
//	running:<workerId>  hash of jobId -> startedAt unix seconds
type Client struct {
	rdb    *redis.Client
	state  atomic.Int32
	logger *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Host + ":" + cfg.Port,
	})
	c := &Client{rdb: rdb, logger: logger}
	c.state.Store(stateUnknown)
	return c
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Healthy probes Redis and updates the availability state.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.ensureUp(ctx) == nil
}

// ensureUp short-circuits when the last probe failed and no reconnect has
// been observed; otherwise it pings once to (re)establish the state.
func (c *Client) ensureUp(ctx context.Context) error {
	if c.state.Load() == stateUp {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(pingCtx).Err(); err != nil {
		c.markDown(err)
		return ErrUnavailable
	}
	if c.state.Swap(stateUp) != stateUp && c.logger != nil {
		c.logger.Printf("[INFO] Redis connection established")
	}
	return nil
}

func (c *Client) markDown(err error) {
	if c.state.Swap(stateDown) != stateDown && c.logger != nil {
		c.logger.Printf("[WARN] Redis marked unavailable: %v", err)
	}
}

// opErr flips the availability state on transport errors and maps them to
// ErrUnavailable. redis.Nil and friends pass through untouched.
func (c *Client) opErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	c.markDown(err)
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func jobKey(jobId string) string        { return "job:" + jobId }
func queueKey(requires string) string   { return "queue:" + requires }
func runningKey(workerId string) string { return "running:" + workerId }

// Enqueue stores the job hash and pushes the id onto its class queue.
// The sorted-set score is -priority (wire compatibility with the other
// workers); claims pop with ZPOPMIN so the numerically larger priority is
// dispatched first.
func (c *Client) Enqueue(ctx context.Context, job *Job) (string, error) {
	if err := c.ensureUp(ctx); err != nil {
		return "", err
	}

	envelope, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job envelope: %w", err)
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode job metadata: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.JobId), map[string]any{
		"payload":          string(envelope),
		"metadata":         string(metadata),
		"status":           StatusQueued,
		"created_at":       job.Metadata.CreatedAt,
		"progress":         0,
		"chunks_processed": 0,
	})
	pipe.ZAdd(ctx, queueKey(job.Requires), redis.Z{
		Score:  -float64(job.Priority),
		Member: job.JobId,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", c.opErr(err)
	}

	if c.logger != nil {
		c.logger.Printf("[INFO] Enqueued job %s type=%s requires=%s priority=%d",
			job.JobId, job.TaskType, job.Requires, job.Priority)
	}
	return job.JobId, nil
}

// Claim pops the highest-priority job from the worker's native queue, falling
// back to queue:any. Ids whose job hash has vanished are skipped. The pop and
// the ownership writes are not transactional; a crash in between leaks the
// job to external reaper tooling.
func (c *Client) Claim(ctx context.Context, workerType, workerId string) (*Job, error) {
	if err := c.ensureUp(ctx); err != nil {
		return nil, err
	}

	queues := []string{queueKey(workerType)}
	if workerType != ClassAny {
		queues = append(queues, queueKey(ClassAny))
	}

	for _, key := range queues {
		for {
			popped, err := c.rdb.ZPopMin(ctx, key, 1).Result()
			if err != nil {
				return nil, c.opErr(err)
			}
			if len(popped) == 0 {
				break // next queue
			}
			jobId, _ := popped[0].Member.(string)

			envelope, err := c.rdb.HGet(ctx, jobKey(jobId), "payload").Result()
			if errors.Is(err, redis.Nil) {
				// Cancelled or expired between enqueue and claim.
				if c.logger != nil {
					c.logger.Printf("[WARN] Skipping stale queue entry %s", jobId)
				}
				continue
			}
			if err != nil {
				return nil, c.opErr(err)
			}

			var job Job
			if err := json.Unmarshal([]byte(envelope), &job); err != nil {
				return nil, fmt.Errorf("decode job %s envelope: %w", jobId, err)
			}

			now := time.Now().UTC()
			pipe := c.rdb.TxPipeline()
			pipe.HSet(ctx, jobKey(jobId), map[string]any{
				"status":     StatusRunning,
				"started_at": now.Format(time.RFC3339),
				"worker_id":  workerId,
			})
			pipe.HSet(ctx, runningKey(workerId), jobId, now.Unix())
			if _, err := pipe.Exec(ctx); err != nil {
				return nil, c.opErr(err)
			}
			return &job, nil
		}
	}
	return nil, ErrNoJob
}

// Heartbeat refreshes last_heartbeat for a running job.
func (c *Client) Heartbeat(ctx context.Context, jobId, workerId string) error {
	err := c.rdb.HSet(ctx, jobKey(jobId), "last_heartbeat", time.Now().UTC().Format(time.RFC3339)).Err()
	return c.opErr(err)
}

// UpdateProgress records worker progress (0..100) and chunk throughput.
func (c *Client) UpdateProgress(ctx context.Context, jobId string, progress, chunksProcessed int) error {
	err := c.rdb.HSet(ctx, jobKey(jobId), map[string]any{
		"progress":         progress,
		"chunks_processed": chunksProcessed,
	}).Err()
	return c.opErr(err)
}

// Complete records the terminal success state and releases worker ownership.
func (c *Client) Complete(ctx context.Context, jobId, workerId string, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobId), map[string]any{
		"status":       StatusCompleted,
		"completed_at": time.Now().UTC().Format(time.RFC3339),
		"result":       string(encoded),
		"progress":     100,
	})
	pipe.HDel(ctx, runningKey(workerId), jobId)
	if _, err := pipe.Exec(ctx); err != nil {
		return c.opErr(err)
	}
	return nil
}

// Fail records the terminal failure state and releases worker ownership.
func (c *Client) Fail(ctx context.Context, jobId, workerId, errorMessage string) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobId), map[string]any{
		"status":    StatusFailed,
		"failed_at": time.Now().UTC().Format(time.RFC3339),
		"error":     errorMessage,
	})
	pipe.HDel(ctx, runningKey(workerId), jobId)
	if _, err := pipe.Exec(ctx); err != nil {
		return c.opErr(err)
	}
	return nil
}

// Status reads the job hash back into a snapshot.
func (c *Client) Status(ctx context.Context, jobId string) (*Snapshot, error) {
	if err := c.ensureUp(ctx); err != nil {
		return nil, err
	}

	fields, err := c.rdb.HGetAll(ctx, jobKey(jobId)).Result()
	if err != nil {
		return nil, c.opErr(err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	snapshot := &Snapshot{
		JobId:         jobId,
		Status:        fields["status"],
		CreatedAt:     fields["created_at"],
		StartedAt:     fields["started_at"],
		CompletedAt:   fields["completed_at"],
		FailedAt:      fields["failed_at"],
		LastHeartbeat: fields["last_heartbeat"],
		WorkerId:      fields["worker_id"],
		Error:         fields["error"],
	}
	snapshot.Progress, _ = strconv.Atoi(fields["progress"])
	snapshot.ChunksProcessed, _ = strconv.Atoi(fields["chunks_processed"])

	if raw := fields["result"]; raw != "" {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("decode result for job %s: %w", jobId, err)
		}
		snapshot.Result = decoded
	}
	return snapshot, nil
}

// Stats returns the depth of every class queue.
func (c *Client) Stats(ctx context.Context) (map[string]int64, error) {
	if err := c.ensureUp(ctx); err != nil {
		return nil, err
	}

	depths := make(map[string]int64, 4)
	for _, class := range []string{ClassCPU, ClassGPU, ClassRAG, ClassAny} {
		depth, err := c.rdb.ZCard(ctx, queueKey(class)).Result()
		if err != nil {
			return nil, c.opErr(err)
		}
		depths[class] = depth
	}
	return depths, nil
}

// OrphanEntry describes a job held in a running:<workerId> hash, for external
// reaper tooling. The core never reclaims.
type OrphanEntry struct {
	JobId         string
	StartedAt     time.Time
	LastHeartbeat string
}

// OrphanScan lists the jobs a worker currently holds, with their last
// recorded heartbeat. A job popped but never hash-updated is invisible here
// too; that window is documented as leaked.
func (c *Client) OrphanScan(ctx context.Context, workerId string) ([]OrphanEntry, error) {
	if err := c.ensureUp(ctx); err != nil {
		return nil, err
	}

	held, err := c.rdb.HGetAll(ctx, runningKey(workerId)).Result()
	if err != nil {
		return nil, c.opErr(err)
	}

	entries := make([]OrphanEntry, 0, len(held))
	for jobId, started := range held {
		startedSec, _ := strconv.ParseInt(started, 10, 64)
		heartbeat, err := c.rdb.HGet(ctx, jobKey(jobId), "last_heartbeat").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, c.opErr(err)
		}
		entries = append(entries, OrphanEntry{
			JobId:         jobId,
			StartedAt:     time.Unix(startedSec, 0).UTC(),
			LastHeartbeat: heartbeat,
		})
	}
	return entries, nil
}
