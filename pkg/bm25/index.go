package bm25

import (
	"math"
	"sort"
	"sync"
	"time"

	"docqa-be/pkg/store"
)

// Okapi BM25 parameters.
const (
	K1 = 1.5
	B  = 0.75
)

type posting struct {
	docId int
	tf    int
}

// userCorpus is an immutable snapshot of one user's indexed chunks.
// Rebuilds swap the whole snapshot under the index writer lock, so readers
// holding the previous snapshot keep scoring against consistent data.
type userCorpus struct {
	docs     []store.Chunk
	docLens  []int
	avgdl    float64
	postings map[string][]posting
	builtAt  time.Time
}

// Index provides per-user lexical retrieval over the chunk corpus.
type Index struct {
	mu    sync.RWMutex
	users map[string]*userCorpus
}

func NewIndex() *Index {
	return &Index{
		users: make(map[string]*userCorpus),
	}
}

// Build replaces the given user's corpus with a fresh snapshot.
func (idx *Index) Build(userId string, chunks []store.Chunk) {
	corpus := &userCorpus{
		docs:     chunks,
		docLens:  make([]int, len(chunks)),
		postings: make(map[string][]posting),
		builtAt:  time.Now(),
	}

	totalLen := 0
	for docId, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		corpus.docLens[docId] = len(tokens)
		totalLen += len(tokens)

		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		for term, tf := range counts {
			corpus.postings[term] = append(corpus.postings[term], posting{docId: docId, tf: tf})
		}
	}
	if len(chunks) > 0 {
		corpus.avgdl = float64(totalLen) / float64(len(chunks))
	}

	idx.mu.Lock()
	idx.users[userId] = corpus
	idx.mu.Unlock()
}

// Drop removes a user's corpus (e.g. after their files changed).
func (idx *Index) Drop(userId string) {
	idx.mu.Lock()
	delete(idx.users, userId)
	idx.mu.Unlock()
}

// Age reports how long ago the user's corpus was built.
// The second return is false when the user has no corpus.
func (idx *Index) Age(userId string) (time.Duration, bool) {
	idx.mu.RLock()
	corpus, ok := idx.users[userId]
	idx.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return time.Since(corpus.builtAt), true
}

// Search returns the top-limit chunks for the query, scored with Okapi BM25
// and ordered by descending score. An empty or missing corpus returns an
// empty list without error.
func (idx *Index) Search(userId, query string, limit int) []store.RetrievalResult {
	idx.mu.RLock()
	corpus, ok := idx.users[userId]
	idx.mu.RUnlock()

	if !ok || len(corpus.docs) == 0 || limit <= 0 {
		return []store.RetrievalResult{}
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return []store.RetrievalResult{}
	}

	n := float64(len(corpus.docs))
	scores := make(map[int]float64)

	for _, term := range terms {
		plist, found := corpus.postings[term]
		if !found {
			continue
		}
		df := float64(len(plist))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for _, p := range plist {
			tf := float64(p.tf)
			dl := float64(corpus.docLens[p.docId])
			norm := tf * (K1 + 1) / (tf + K1*(1-B+B*dl/corpus.avgdl))
			scores[p.docId] += idf * norm
		}
	}

	results := make([]store.RetrievalResult, 0, len(scores))
	for docId, score := range scores {
		chunk := corpus.docs[docId]
		results = append(results, store.RetrievalResult{
			FileId:     chunk.FileId,
			FileName:   chunk.FileName,
			ChunkIndex: chunk.ChunkIndex,
			Text:       chunk.Text,
			Score:      score,
			BM25Score:  score,
			Source:     store.SourceBM25,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FileName < results[j].FileName
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
