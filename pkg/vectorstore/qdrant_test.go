package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qdrantPoint(score float64, userId, fileId, fileName string, index int, text string) map[string]any {
	return map[string]any{
		"score": score,
		"payload": map[string]any{
			"userId":     userId,
			"fileId":     fileId,
			"fileName":   fileName,
			"chunkIndex": index,
			"text":       text,
		},
	}
}

func TestQdrantSearchBuildsFilterAndMapsResults(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/chunks/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				qdrantPoint(0.91, "u1", "f1", "manual.pdf", 0, "warranty text"),
				qdrantPoint(0.84, "u1", "f2", "notes.txt", 3, "other text"),
			},
		})
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "chunks"})
	results, err := q.Search(context.Background(), []float32{0.1, 0.2}, 5, Filter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "f1", results[0].FileId)
	assert.Equal(t, "manual.pdf", results[0].FileName)
	assert.Equal(t, 0.91, results[0].VectorScore)
	assert.Equal(t, "vector", results[0].Source)

	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
	cond := must[0].(map[string]any)
	assert.Equal(t, "userId", cond["key"])
}

func TestQdrantSearchFileFilterAddsCondition(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{}})
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "chunks"})
	_, err := q.Search(context.Background(), []float32{0.1}, 5, Filter{UserID: "u1", FileID: "f9"})
	require.NoError(t, err)

	must := captured["filter"].(map[string]any)["must"].([]any)
	assert.Len(t, must, 2)
}

func TestQdrantSearchDropsForeignUserPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				qdrantPoint(0.95, "u2", "f1", "leak.pdf", 0, "not yours"),
				qdrantPoint(0.80, "u1", "f2", "mine.txt", 1, "mine"),
			},
		})
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "chunks"})
	results, err := q.Search(context.Background(), []float32{0.1}, 5, Filter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "f2", results[0].FileId)
}

func TestQdrantScrollPaging(t *testing.T) {
	var offsets []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/chunks/points/scroll", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		offsets = append(offsets, body["offset"])

		page := map[string]any{
			"points": []map[string]any{
				{"payload": map[string]any{
					"userId": "u1", "fileId": "f1", "fileName": "a.txt",
					"chunkIndex": len(offsets) - 1, "text": "chunk",
				}},
			},
			"next_page_offset": nil,
		}
		if len(offsets) == 1 {
			page["next_page_offset"] = 1000000
		}
		json.NewEncoder(w).Encode(map[string]any{"result": page})
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "chunks"})
	chunks, next, err := q.Scroll(context.Background(), Filter{UserID: "u1"}, 100, "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk", chunks[0].Text)
	require.NotEmpty(t, next)

	_, next, err = q.Scroll(context.Background(), Filter{UserID: "u1"}, 100, next)
	require.NoError(t, err)
	assert.Empty(t, next)

	require.Len(t, offsets, 2)
	assert.Nil(t, offsets[0])
	// Integer point ids must round-trip as JSON numbers, not strings.
	assert.Equal(t, float64(1000000), offsets[1])
}

func TestQdrantCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/chunks/points/count", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"count": 17},
		})
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "chunks"})
	count, err := q.Count(context.Background(), Filter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(17), count)
}
