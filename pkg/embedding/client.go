package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Dimension is the deployment-wide embedding size. Any other size from the
// service is a protocol error, not a degradation.
const Dimension = 1024

const (
	singleTimeout  = 30 * time.Second
	batchTimeout   = 60 * time.Second
	batchSize      = 12
	retryDelay     = 1 * time.Second
	healthInterval = 60 * time.Second
)

var (
	// ErrUnavailable means the embedding service failed its health probe.
	ErrUnavailable = errors.New("embedding: service unavailable")
	// ErrDimension means the service returned a vector of the wrong size.
	ErrDimension = errors.New("embedding: unexpected vector dimension")
)

// Client talks to the external embedding service.
type Client struct {
	baseURL     string
	client      *http.Client
	batchClient *http.Client

	mu        sync.Mutex
	healthy   bool
	checkedAt time.Time
}

var _ Provider = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: singleTimeout},
		batchClient: &http.Client{Timeout: batchTimeout},
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
}

type embedBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Healthy reports the cached health flag, probing GET /health at most once
// per healthInterval. The probe runs outside the lock so concurrent callers
// never queue behind a slow round-trip; overlapping probes may race and the
// last write wins.
func (c *Client) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.checkedAt) < healthInterval {
		healthy := c.healthy
		c.mu.Unlock()
		return healthy
	}
	c.mu.Unlock()

	healthy := c.probe(ctx)

	c.mu.Lock()
	c.healthy = healthy
	c.checkedAt = time.Now()
	c.mu.Unlock()
	return healthy
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Embed converts text to a Dimension-sized vector. Failing health
// short-circuits; a timeout is retried once after retryDelay.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.Healthy(ctx) {
		return nil, ErrUnavailable
	}

	vector, err := c.embedOnce(ctx, text)
	if err != nil && isTimeout(err) {
		time.Sleep(retryDelay)
		vector, err = c.embedOnce(ctx, text)
	}
	return vector, err
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	if err := c.postJSON(ctx, c.client, "/embed", embedRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) != Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(out.Embedding), Dimension)
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts in chunks of batchSize. Entries the service could
// not embed come back nil; a wrong-sized vector still fails the whole call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if !c.Healthy(ctx) {
		return nil, ErrUnavailable
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var out embedBatchResponse
		err := c.postJSON(ctx, c.batchClient, "/embed/batch", embedBatchRequest{Texts: texts[start:end]}, &out)
		if err != nil && isTimeout(err) {
			time.Sleep(retryDelay)
			err = c.postJSON(ctx, c.batchClient, "/embed/batch", embedBatchRequest{Texts: texts[start:end]}, &out)
		}
		if err != nil {
			return nil, err
		}
		if len(out.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding: batch size mismatch: got %d, want %d", len(out.Embeddings), end-start)
		}
		for _, vector := range out.Embeddings {
			if vector != nil && len(vector) != Dimension {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vector), Dimension)
			}
			vectors = append(vectors, vector)
		}
	}
	return vectors, nil
}

func (c *Client) postJSON(ctx context.Context, client *http.Client, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding api error (status %d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}
	return false
}
