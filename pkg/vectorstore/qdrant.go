package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docqa-be/pkg/embedding"
	"docqa-be/pkg/store"
)

const qdrantTimeout = 15 * time.Second

// Qdrant is a minimal REST client to a Qdrant collection.
// Points carry the chunk payload; filtering is done server-side with
// must-match conditions and verified again client-side.
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

var _ Store = (*Qdrant)(nil)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	return &Qdrant{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: qdrantTimeout},
	}
}

func (q *Qdrant) CollectionName() string { return q.collection }

func (q *Qdrant) VectorSize() int { return embedding.Dimension }

func (q *Qdrant) filterClause(filter Filter) map[string]any {
	must := []map[string]any{}
	if filter.UserID != "" {
		must = append(must, map[string]any{
			"key": "userId", "match": map[string]any{"value": filter.UserID},
		})
	}
	if filter.FileID != "" {
		must = append(must, map[string]any{
			"key": "fileId", "match": map[string]any{"value": filter.FileID},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

type qdrantPayload struct {
	FileId     string `json:"fileId"`
	FileName   string `json:"fileName"`
	UserId     string `json:"userId"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]store.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter":       q.filterClause(filter),
	}
	var resp struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	results := make([]store.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		// Server-side filter should have handled this already, but a
		// misconfigured payload index silently matches nothing on the
		// key and returns everything. Never leak another user's chunks.
		if r.Payload.UserId != filter.UserID {
			continue
		}
		if filter.FileID != "" && r.Payload.FileId != filter.FileID {
			continue
		}
		results = append(results, store.RetrievalResult{
			FileId:      r.Payload.FileId,
			FileName:    r.Payload.FileName,
			ChunkIndex:  r.Payload.ChunkIndex,
			Text:        r.Payload.Text,
			Score:       r.Score,
			VectorScore: r.Score,
			Source:      store.SourceVector,
		})
	}
	return results, nil
}

func (q *Qdrant) Scroll(ctx context.Context, filter Filter, limit int, offset string) ([]store.Chunk, string, error) {
	if limit <= 0 {
		limit = 256
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"filter":       q.filterClause(filter),
	}
	if offset != "" {
		// The offset token is echoed back verbatim. Qdrant hands out
		// either string or integer point ids and the token must keep
		// its JSON type.
		req["offset"] = json.RawMessage(offset)
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload qdrantPayload `json:"payload"`
			} `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/scroll", q.url, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return nil, "", err
	}

	chunks := make([]store.Chunk, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		if p.Payload.UserId != filter.UserID {
			continue
		}
		chunks = append(chunks, store.Chunk{
			FileId:     p.Payload.FileId,
			FileName:   p.Payload.FileName,
			UserId:     p.Payload.UserId,
			ChunkIndex: p.Payload.ChunkIndex,
			Text:       p.Payload.Text,
		})
	}

	next := ""
	if len(resp.Result.NextPageOffset) > 0 && string(resp.Result.NextPageOffset) != "null" {
		next = string(resp.Result.NextPageOffset)
	}
	return chunks, next, nil
}

func (q *Qdrant) Count(ctx context.Context, filter Filter) (int64, error) {
	req := map[string]any{
		"exact": true,
	}
	if clause := q.filterClause(filter); clause != nil {
		req["filter"] = clause
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed (status %d): %s", url, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
