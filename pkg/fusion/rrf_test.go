package fusion

import (
	"testing"

	"docqa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(fileId string, chunkIndex int, score float64) store.RetrievalResult {
	return store.RetrievalResult{
		FileId:     fileId,
		FileName:   fileId + ".md",
		ChunkIndex: chunkIndex,
		Score:      score,
	}
}

func TestFuseReciprocalRankMath(t *testing.T) {
	// BM25: [A@1, B@2, C@3], Vector: [B@1, D@2, A@3], K=60.
	bm25 := []store.RetrievalResult{
		result("A", 0, 9.1),
		result("B", 0, 7.3),
		result("C", 0, 4.2),
	}
	vector := []store.RetrievalResult{
		result("B", 0, 0.91),
		result("D", 0, 0.85),
		result("A", 0, 0.80),
	}

	fused := Fuse(bm25, vector, 60)
	require.Len(t, fused, 4)

	scores := make(map[string]float64)
	for _, r := range fused {
		scores[r.FileId] = r.RRFScore
	}
	assert.InDelta(t, 1.0/61+1.0/63, scores["A"], 1e-12)
	assert.InDelta(t, 1.0/62+1.0/61, scores["B"], 1e-12)
	assert.InDelta(t, 1.0/63, scores["C"], 1e-12)
	assert.InDelta(t, 1.0/62, scores["D"], 1e-12)

	// Top-2 before diversity: B then A.
	assert.Equal(t, "B", fused[0].FileId)
	assert.Equal(t, "A", fused[1].FileId)
	assert.Equal(t, 1, fused[0].FusionRank)
	assert.Equal(t, 2, fused[1].FusionRank)
}

func TestFuseSourceAttribution(t *testing.T) {
	bm25 := []store.RetrievalResult{result("A", 0, 5), result("B", 0, 3)}
	vector := []store.RetrievalResult{result("A", 0, 0.9), result("C", 0, 0.8)}

	fused := Fuse(bm25, vector, DefaultK)
	byFile := make(map[string]store.RetrievalResult)
	for _, r := range fused {
		byFile[r.FileId] = r
	}

	assert.Equal(t, []string{store.SourceBM25, store.SourceVector}, byFile["A"].Sources)
	assert.Equal(t, []string{store.SourceBM25}, byFile["B"].Sources)
	assert.Equal(t, []string{store.SourceVector}, byFile["C"].Sources)
	assert.Equal(t, store.SourceHybrid, byFile["A"].Source)
	assert.InDelta(t, 0.9, byFile["A"].VectorScore, 1e-12)
}

func TestFuseMonotonicity(t *testing.T) {
	// A chunk ranked strictly higher in both lists must out-score one ranked
	// strictly lower in both.
	bm25 := []store.RetrievalResult{result("hi", 0, 9), result("mid", 0, 5), result("lo", 0, 1)}
	vector := []store.RetrievalResult{result("hi", 0, 0.9), result("mid", 0, 0.5), result("lo", 0, 0.1)}

	fused := Fuse(bm25, vector, DefaultK)
	scores := make(map[string]float64)
	for _, r := range fused {
		scores[r.FileId] = r.RRFScore
	}
	assert.Greater(t, scores["hi"], scores["mid"])
	assert.Greater(t, scores["mid"], scores["lo"])
}

func TestDiversityPenaltyReorders(t *testing.T) {
	// Fused ranking [(f1,0),(f1,1),(f2,0),(f1,2)] with scores
	// [0.030, 0.028, 0.027, 0.026]. After 0.9^n: [0.030, 0.0252, 0.027, 0.02106].
	in := []store.RetrievalResult{
		{FileId: "f1", ChunkIndex: 0, RRFScore: 0.030},
		{FileId: "f1", ChunkIndex: 1, RRFScore: 0.028},
		{FileId: "f2", ChunkIndex: 0, RRFScore: 0.027},
		{FileId: "f1", ChunkIndex: 2, RRFScore: 0.026},
	}

	out := ApplyDiversityPenalty(in)
	require.Len(t, out, 4)

	assert.Equal(t, "f1", out[0].FileId)
	assert.Equal(t, 0, out[0].ChunkIndex)
	assert.Equal(t, "f2", out[1].FileId)
	assert.Equal(t, "f1", out[2].FileId)
	assert.Equal(t, 1, out[2].ChunkIndex)
	assert.Equal(t, "f1", out[3].FileId)
	assert.Equal(t, 2, out[3].ChunkIndex)

	assert.InDelta(t, 0.030, out[0].RRFScore, 1e-9)
	assert.InDelta(t, 0.027, out[1].RRFScore, 1e-9)
	assert.InDelta(t, 0.0252, out[2].RRFScore, 1e-9)
	assert.InDelta(t, 0.02106, out[3].RRFScore, 1e-9)
}

func TestDiversityKeepsTwoFilesInTopTwo(t *testing.T) {
	in := []store.RetrievalResult{
		{FileId: "f1", ChunkIndex: 0, RRFScore: 0.0300},
		{FileId: "f1", ChunkIndex: 1, RRFScore: 0.0299},
		{FileId: "f2", ChunkIndex: 0, RRFScore: 0.0298},
	}
	out := Truncate(ApplyDiversityPenalty(in), 2)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].FileId, out[1].FileId)
}

func TestTruncate(t *testing.T) {
	in := []store.RetrievalResult{result("A", 0, 1), result("B", 0, 2)}
	assert.Len(t, Truncate(in, 1), 1)
	assert.Len(t, Truncate(in, 0), 2)
	assert.Len(t, Truncate(in, 5), 2)
}
