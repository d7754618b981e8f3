package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"docqa-be/pkg/bm25"
	"docqa-be/pkg/embedding"
	"docqa-be/pkg/fusion"
	"docqa-be/pkg/llm"
	"docqa-be/pkg/store"
	"docqa-be/pkg/vectorstore"
)

var (
	// ErrEmptyQuestion means the caller sent nothing to answer.
	ErrEmptyQuestion = errors.New("rag: question must not be empty")
)

// corpusMaxAge bounds how stale the keyword index may be before it is
// rebuilt from the vector store.
const corpusMaxAge = 60 * time.Second

// FileLister exposes the file registry to the pipeline.
type FileLister interface {
	ListFileNames(ctx context.Context, userId string) ([]string, error)
}

// Pipeline runs retrieval and answer synthesis for one question.
type Pipeline struct {
	embedder embedding.Provider
	vectors  vectorstore.Store
	keyword  *bm25.Index
	llm      llm.Provider
	files    FileLister
	cache    *answerCache
}

func NewPipeline(embedder embedding.Provider, vectors vectorstore.Store, keyword *bm25.Index, llmProvider llm.Provider, files FileLister) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		keyword:  keyword,
		llm:      llmProvider,
		files:    files,
		cache:    newAnswerCache(),
	}
}

// Answer runs the full pipeline over every document the user owns.
func (p *Pipeline) Answer(ctx context.Context, userId, question string, opts Options) (*AnswerRecord, error) {
	return p.answer(ctx, userId, question, "", opts)
}

// AnswerForFile restricts retrieval to a single file. Ownership must be
// checked by the caller before getting here. The search is forced to
// vector-only and the has-documents check is skipped: the file is known to
// exist.
func (p *Pipeline) AnswerForFile(ctx context.Context, userId, fileId, question string, opts Options) (*AnswerRecord, error) {
	return p.answer(ctx, userId, question, fileId, opts)
}

func (p *Pipeline) answer(ctx context.Context, userId, question, fileId string, opts Options) (*AnswerRecord, error) {
	started := time.Now()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	opts = opts.normalized()

	scope := "all"
	if fileId != "" {
		scope = fileId
		opts.Mode = ModeVector
	}
	signature := buildSignature(userId, question, scope, opts.Mode, opts.TopK, opts.MinScore)
	if record, ok := p.cache.Get(signature); ok {
		cached := *record
		cached.Metadata.CacheHit = true
		cached.Metadata.DurationMs = time.Since(started).Milliseconds()
		return &cached, nil
	}

	if fileId == "" {
		fileNames, err := p.files.ListFileNames(ctx, userId)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		if len(fileNames) == 0 {
			return p.cannedRecord(llm.NoDocumentsAnswer, question, opts, "no_files", started), nil
		}
	}

	filter := vectorstore.Filter{UserID: userId, FileID: fileId}

	var results []store.RetrievalResult
	var err error
	switch opts.Mode {
	case ModeVector:
		results, err = p.vectorSearch(ctx, question, opts.TopK, opts.MinScore, filter)
	case ModeBM25:
		results, err = p.keywordSearch(ctx, userId, question, opts.TopK, filter)
	default:
		results, err = p.hybridSearch(ctx, userId, question, opts.TopK, filter)
	}
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		record := p.cannedRecord(llm.NoContextAnswer, question, opts, "no_context", started)
		p.cache.Put(signature, record)
		return record, nil
	}

	retrievalContext, chunksUsed, usedNames := buildContext(results)
	answer, err := p.llm.GenerateAnswer(ctx, question, retrievalContext, llm.WithFileNames(usedNames))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	record := &AnswerRecord{
		Answer:  answer,
		Context: retrievalContext,
		Sources: toSources(results),
		Metadata: Metadata{
			Question:        question,
			ChunksRetrieved: len(results),
			ChunksUsed:      chunksUsed,
			ContextLength:   len(retrievalContext),
			UniqueFiles:     len(usedNames),
			UniqueFileNames: usedNames,
			SearchMode:      opts.Mode,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			DurationMs:      time.Since(started).Milliseconds(),
		},
	}
	p.cache.Put(signature, record)
	return record, nil
}

func (p *Pipeline) cannedRecord(answer, question string, opts Options, reason string, started time.Time) *AnswerRecord {
	return &AnswerRecord{
		Answer:  answer,
		Sources: []Source{},
		Metadata: Metadata{
			Question:        question,
			UniqueFileNames: []string{},
			SearchMode:      opts.Mode,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			Reason:          reason,
			DurationMs:      time.Since(started).Milliseconds(),
		},
	}
}

// hybridSearch runs both retrievers over a widened candidate pool, fuses
// them with reciprocal rank fusion, then applies the same-file diversity
// penalty. An empty list from one retriever degrades to the other, but an
// error from either fails the whole request; minScore does not apply
// because RRF scores live on a different scale.
func (p *Pipeline) hybridSearch(ctx context.Context, userId, question string, topK int, filter vectorstore.Filter) ([]store.RetrievalResult, error) {
	poolSize := topK * 2

	var (
		wg         sync.WaitGroup
		bm25List   []store.RetrievalResult
		vectorList []store.RetrievalResult
		bm25Err    error
		vectorErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		bm25List, bm25Err = p.keywordSearch(ctx, userId, question, poolSize, filter)
	}()
	go func() {
		defer wg.Done()
		vectorList, vectorErr = p.vectorSearch(ctx, question, poolSize, 0, filter)
	}()
	wg.Wait()

	if bm25Err != nil {
		return nil, fmt.Errorf("keyword retrieval: %w", bm25Err)
	}
	if vectorErr != nil {
		return nil, fmt.Errorf("vector retrieval: %w", vectorErr)
	}

	fused := fusion.Fuse(bm25List, vectorList, fusion.DefaultK)
	fused = fusion.ApplyDiversityPenalty(fused)
	return fusion.Truncate(fused, topK), nil
}

func (p *Pipeline) vectorSearch(ctx context.Context, question string, limit int, minScore float64, filter vectorstore.Filter) ([]store.RetrievalResult, error) {
	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := p.vectors.Search(ctx, vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if minScore <= 0 {
		return results, nil
	}
	kept := results[:0]
	for _, r := range results {
		if r.VectorScore >= minScore {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (p *Pipeline) keywordSearch(ctx context.Context, userId, question string, limit int, filter vectorstore.Filter) ([]store.RetrievalResult, error) {
	if err := p.hydrateCorpus(ctx, userId); err != nil {
		return nil, fmt.Errorf("hydrate corpus: %w", err)
	}
	results := p.keyword.Search(userId, question, limit)
	if filter.FileID == "" {
		return results, nil
	}
	kept := results[:0]
	for _, r := range results {
		if r.FileId == filter.FileID {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// hydrateCorpus rebuilds the user's keyword index from the vector store when
// it is missing or older than corpusMaxAge. The vector store is the source
// of truth for chunk text.
func (p *Pipeline) hydrateCorpus(ctx context.Context, userId string) error {
	if age, ok := p.keyword.Age(userId); ok && age < corpusMaxAge {
		return nil
	}

	var chunks []store.Chunk
	offset := ""
	for {
		page, next, err := p.vectors.Scroll(ctx, vectorstore.Filter{UserID: userId}, 256, offset)
		if err != nil {
			return err
		}
		chunks = append(chunks, page...)
		if next == "" {
			break
		}
		offset = next
	}

	p.keyword.Build(userId, chunks)
	log.Printf("[INFO] keyword index rebuilt for user %s with %d chunks", userId, len(chunks))
	return nil
}

// buildContext renders the retrieved chunks into the prompt block, capped at
// maxContextLength characters. Chunks past the cap are dropped whole; they
// stay in the sources list but the model never sees them.
func buildContext(results []store.RetrievalResult) (string, int, []string) {
	var sb strings.Builder
	seen := map[string]bool{}
	names := []string{}
	used := 0

	for i, r := range results {
		block := fmt.Sprintf("[Source %d: %s]\n%s\n\n", i+1, r.FileName, r.Text)
		if sb.Len()+len(block) > maxContextLength {
			break
		}
		sb.WriteString(block)
		used++
		if !seen[r.FileName] {
			seen[r.FileName] = true
			names = append(names, r.FileName)
		}
	}
	sort.Strings(names)
	return strings.TrimRight(sb.String(), "\n") + "\n", used, names
}
