package rag

import "docqa-be/pkg/store"

// Retrieval modes.
const (
	ModeHybrid = "hybrid"
	ModeVector = "vector"
	ModeBM25   = "bm25"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 20
	DefaultMinScore  = 0.0
	maxContextLength = 4000
)

// Options tune one question. Zero values fall back to defaults.
type Options struct {
	Mode     string
	TopK     int
	MinScore float64
}

func (o Options) normalized() Options {
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.TopK > MaxTopK {
		o.TopK = MaxTopK
	}
	if o.MinScore < 0 {
		o.MinScore = DefaultMinScore
	}
	return o
}

// Source describes one chunk the answer drew on. All retrieved chunks are
// listed even when the context cap kept some away from the model.
type Source struct {
	FileName   string   `json:"fileName"`
	Score      float64  `json:"score"`
	Text       string   `json:"text"`
	ChunkIndex int      `json:"chunkIndex"`
	FileId     string   `json:"fileId"`
	Sources    []string `json:"sources,omitempty"`
	FusionRank int      `json:"fusionRank,omitempty"`
}

// Metadata reports how the answer was produced.
type Metadata struct {
	Question        string   `json:"question"`
	ChunksRetrieved int      `json:"chunksRetrieved"`
	ChunksUsed      int      `json:"chunksUsed"`
	ContextLength   int      `json:"contextLength"`
	UniqueFiles     int      `json:"uniqueFiles"`
	UniqueFileNames []string `json:"uniqueFileNames"`
	SearchMode      string   `json:"searchMode"`
	Timestamp       string   `json:"timestamp"`
	CacheHit        bool     `json:"cacheHit,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	DurationMs      int64    `json:"durationMs"`
}

// AnswerRecord is the pipeline output, returned over HTTP and stored as the
// job result. Immutable once cached.
type AnswerRecord struct {
	Answer   string   `json:"answer"`
	Context  string   `json:"context"`
	Sources  []Source `json:"sources"`
	Metadata Metadata `json:"metadata"`
}

func toSources(results []store.RetrievalResult) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			FileName:   r.FileName,
			Score:      r.Score,
			Text:       r.Text,
			ChunkIndex: r.ChunkIndex,
			FileId:     r.FileId,
			Sources:    r.Sources,
			FusionRank: r.FusionRank,
		})
	}
	return sources
}
