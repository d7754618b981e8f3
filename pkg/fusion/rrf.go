package fusion

import (
	"sort"

	"docqa-be/pkg/store"
)

// DefaultK is the Reciprocal Rank Fusion constant.
const DefaultK = 60

// DiversityFactor is the per-duplicate-file score multiplier applied after
// fusion. Each result already emitted from the same file multiplies the next
// one by this factor once more.
const DiversityFactor = 0.9

// Fuse merges a BM25 list and a vector list with Reciprocal Rank Fusion.
// Chunk identity is (fileId, chunkIndex). Each merged entry carries the
// contributing source labels, the per-list scores when available, and a
// 1-indexed fusionRank after sorting by descending rrfScore.
func Fuse(bm25List, vectorList []store.RetrievalResult, k int) []store.RetrievalResult {
	if k <= 0 {
		k = DefaultK
	}

	type ranked struct {
		result     store.RetrievalResult
		bm25Rank   int // 1-indexed, 0 = absent
		vectorRank int
	}

	merged := make(map[string]*ranked)
	order := make([]string, 0, len(bm25List)+len(vectorList))

	for i, r := range bm25List {
		key := r.Key()
		merged[key] = &ranked{result: r, bm25Rank: i + 1}
		order = append(order, key)
	}
	for i, r := range vectorList {
		key := r.Key()
		entry, seen := merged[key]
		if !seen {
			entry = &ranked{result: r}
			merged[key] = entry
			order = append(order, key)
		}
		entry.vectorRank = i + 1
		entry.result.VectorScore = r.Score
	}

	fused := make([]store.RetrievalResult, 0, len(order))
	for _, key := range order {
		entry := merged[key]
		out := entry.result
		out.Source = store.SourceHybrid
		out.Sources = nil

		rrf := 0.0
		if entry.bm25Rank > 0 {
			rrf += 1.0 / float64(k+entry.bm25Rank)
			out.Sources = append(out.Sources, store.SourceBM25)
		}
		if entry.vectorRank > 0 {
			rrf += 1.0 / float64(k+entry.vectorRank)
			out.Sources = append(out.Sources, store.SourceVector)
		}
		out.RRFScore = rrf
		out.Score = rrf
		fused = append(fused, out)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return fused[i].FileName < fused[j].FileName
	})

	for i := range fused {
		fused[i].FusionRank = i + 1
	}
	return fused
}

// ApplyDiversityPenalty walks the fused list in order, multiplying each
// result's rrfScore by DiversityFactor^n where n counts already-emitted
// results from the same fileId, then stably re-sorts by the adjusted score.
// This biases the head of the list toward distinct source files without
// hiding strong same-file follow-ups.
func ApplyDiversityPenalty(results []store.RetrievalResult) []store.RetrievalResult {
	emitted := make(map[string]int)
	adjusted := make([]store.RetrievalResult, len(results))

	for i, r := range results {
		penalty := 1.0
		for n := 0; n < emitted[r.FileId]; n++ {
			penalty *= DiversityFactor
		}
		r.RRFScore *= penalty
		r.Score = r.RRFScore
		adjusted[i] = r
		emitted[r.FileId]++
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].RRFScore > adjusted[j].RRFScore
	})
	return adjusted
}

// Truncate caps the list at topK.
func Truncate(results []store.RetrievalResult, topK int) []store.RetrievalResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
