package store

import "strconv"

// Chunk is the unit of retrieval produced by the ingestion pipeline.
// Chunks are immutable at query time.
type Chunk struct {
	FileId     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	UserId     string    `json:"userId"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Retrieval sources
const (
	SourceBM25   = "bm25"
	SourceVector = "vector"
	SourceHybrid = "hybrid"
)

// RetrievalResult is a scored chunk produced transiently per query.
// Fusion fields are populated only for hybrid results.
type RetrievalResult struct {
	FileId      string   `json:"fileId"`
	FileName    string   `json:"fileName"`
	ChunkIndex  int      `json:"chunkIndex"`
	Text        string   `json:"text"`
	Score       float64  `json:"score"`
	Source      string   `json:"source"`
	RRFScore    float64  `json:"rrfScore,omitempty"`
	VectorScore float64  `json:"vectorScore,omitempty"`
	BM25Score   float64  `json:"bm25Score,omitempty"`
	FusionRank  int      `json:"fusionRank,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// Key identifies a chunk across retrieval lists.
func (r RetrievalResult) Key() string {
	return r.FileId + "#" + strconv.Itoa(r.ChunkIndex)
}
