package vectorstore

import (
	"context"

	"docqa-be/pkg/store"
)

// Filter narrows a search to one user and optionally one file. UserID is
// mandatory; retrieval never crosses user boundaries.
type Filter struct {
	UserID string
	FileID string
}

// Store is the contract for the chunk vector index.
type Store interface {
	// Search returns up to limit chunks nearest to vector, most similar
	// first, with VectorScore set to cosine similarity.
	Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]store.RetrievalResult, error)

	// Scroll pages through all chunks matching filter without a query
	// vector. Used to hydrate the keyword index. The returned offset is
	// an opaque continuation token to pass back verbatim; empty means
	// the scroll is exhausted.
	Scroll(ctx context.Context, filter Filter, limit int, offset string) ([]store.Chunk, string, error)

	// Count reports how many chunks match filter. An empty filter counts
	// the whole collection.
	Count(ctx context.Context, filter Filter) (int64, error)

	// CollectionName identifies the backing collection or table.
	CollectionName() string

	// VectorSize is the stored embedding dimension.
	VectorSize() int
}
