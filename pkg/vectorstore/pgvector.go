package vectorstore

import (
	"context"
	"strconv"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"docqa-be/pkg/embedding"
	"docqa-be/pkg/store"
)

// chunkRow maps the document_chunks table. The embedding column is a
// pgvector vector(1024) with a cosine index.
type chunkRow struct {
	ID         uint            `gorm:"primaryKey"`
	FileID     string          `gorm:"column:file_id;index"`
	FileName   string          `gorm:"column:file_name"`
	UserID     string          `gorm:"column:user_id;index"`
	ChunkIndex int             `gorm:"column:chunk_index"`
	Text       string          `gorm:"column:text"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(1024)"`
}

func (chunkRow) TableName() string {
	return "document_chunks"
}

// PgVector stores chunk vectors in Postgres via the pgvector extension.
// Selected with VECTOR_BACKEND=pgvector.
type PgVector struct {
	db *gorm.DB
}

var _ Store = (*PgVector)(nil)

func NewPgVector(db *gorm.DB) *PgVector {
	return &PgVector{db: db}
}

func (p *PgVector) CollectionName() string { return chunkRow{}.TableName() }

func (p *PgVector) VectorSize() int { return embedding.Dimension }

func (p *PgVector) scoped(ctx context.Context, filter Filter) *gorm.DB {
	query := p.db.WithContext(ctx).Model(&chunkRow{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.FileID != "" {
		query = query.Where("file_id = ?", filter.FileID)
	}
	return query
}

func (p *PgVector) Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]store.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance is 1 - similarity, so similarity = 1 - (embedding <=> q).
	type scoredRow struct {
		chunkRow
		Similarity float64
	}
	var rows []scoredRow

	queryVector := pgvector.NewVector(vector)
	err := p.scoped(ctx, filter).
		Select("document_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Order("similarity DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]store.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, store.RetrievalResult{
			FileId:      row.FileID,
			FileName:    row.FileName,
			ChunkIndex:  row.ChunkIndex,
			Text:        row.Text,
			Score:       row.Similarity,
			VectorScore: row.Similarity,
			Source:      store.SourceVector,
		})
	}
	return results, nil
}

func (p *PgVector) Scroll(ctx context.Context, filter Filter, limit int, offset string) ([]store.Chunk, string, error) {
	if limit <= 0 {
		limit = 256
	}
	skip := 0
	if offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil {
			return nil, "", err
		}
		skip = parsed
	}

	var rows []chunkRow
	err := p.scoped(ctx, filter).
		Order("file_id, chunk_index").
		Offset(skip).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	chunks := make([]store.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, store.Chunk{
			FileId:     row.FileID,
			FileName:   row.FileName,
			UserId:     row.UserID,
			ChunkIndex: row.ChunkIndex,
			Text:       row.Text,
		})
	}

	next := ""
	if len(rows) == limit {
		next = strconv.Itoa(skip + limit)
	}
	return chunks, next, nil
}

func (p *PgVector) Count(ctx context.Context, filter Filter) (int64, error) {
	var count int64
	err := p.scoped(ctx, filter).Count(&count).Error
	return count, err
}
