package implementation

import (
	"context"
	"errors"
	"fmt"

	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/mapper"
	"essay-coach-be/internal/model"
	"essay-coach-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *entity.Document) error {
	m := r.mapper.ToModel(doc)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var m model.Document
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) FindByTag(ctx context.Context, tag string, category string) ([]*entity.Document, error) {
	var models []*model.Document

	// jsonb containment: tags @> '["identity"]'
	query := r.db.WithContext(ctx).
		Where("tags @> ?", fmt.Sprintf("[%q]", tag))
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	result := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("embedding", vec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DocumentRepositoryImpl) CountByCategory(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

func (r *DocumentRepositoryImpl) CountByTag(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Tag   string
		Count int64
	}
	var rows []row

	// Unnest the jsonb tag arrays server-side
	err := r.db.WithContext(ctx).
		Raw(`SELECT tag, count(*) AS count
		     FROM documents, jsonb_array_elements_text(tags) AS tag
		     GROUP BY tag
		     ORDER BY count DESC`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Tag] = r.Count
	}
	return counts, nil
}

// SearchSimilarWithScore returns documents with similarity scores, filtered by threshold.
func (r *DocumentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, category string, threshold float64) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	// So we compute: 1 - (embedding <=> query_vector) = cosine_similarity
	type result struct {
		model.Document
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) > ?", queryVector, threshold)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocument, len(results))
	for i, res := range results {
		doc := res.Document
		scored[i] = &contract.ScoredDocument{
			Document:   r.mapper.ToEntity(&doc),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
