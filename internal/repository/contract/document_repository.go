package contract

import (
	"context"

	"essay-coach-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredDocument wraps a Document with its similarity to a query vector.
type ScoredDocument struct {
	Document   *entity.Document
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// DocumentRepository is the persisted corpus of embedded example documents.
// Reads used on the conversational path (similarity search, tag lookup) are
// wrapped by callers with a degrade-to-empty policy; writes surface errors.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	// FindByTag matches documents whose tag set contains tag; category is an
	// optional exact-match filter ("" disables it).
	FindByTag(ctx context.Context, tag string, category string) ([]*entity.Document, error)
	// UpdateEmbedding writes only the embedding column.
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByCategory(ctx context.Context) (map[string]int64, error)
	CountByTag(ctx context.Context) (map[string]int64, error)
	// SearchSimilarWithScore ranks documents with a non-null embedding by
	// cosine similarity to the query vector, keeping only matches strictly
	// above threshold, descending, capped at limit. The underlying ivfflat
	// index is approximate; recall is tuned via the lists/probes knobs.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, category string, threshold float64) ([]*ScoredDocument, error)
}
