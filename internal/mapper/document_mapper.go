package mapper

import (
	"encoding/json"
	"time"

	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/model"
	"essay-coach-be/pkg/analyzer"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	var tags []string
	if len(d.Tags) > 0 {
		_ = json.Unmarshal(d.Tags, &tags)
	}

	var analysis *analyzer.Analysis
	if len(d.Analysis) > 0 {
		analysis = &analyzer.Analysis{}
		if err := json.Unmarshal(d.Analysis, analysis); err != nil {
			analysis = nil
		}
	}

	var metadata map[string]interface{}
	if len(d.Metadata) > 0 {
		_ = json.Unmarshal(d.Metadata, &metadata)
	}

	var embedding []float32
	if d.Embedding != nil {
		embedding = d.Embedding.Slice()
	}

	return &entity.Document{
		Id:        d.Id,
		Title:     d.Title,
		Content:   d.Content,
		Category:  d.Category,
		Source:    d.Source,
		Tags:      tags,
		Analysis:  analysis,
		Metadata:  metadata,
		Embedding: embedding,
		CreatedAt: d.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	out := &model.Document{
		Id:        d.Id,
		Title:     d.Title,
		Content:   d.Content,
		Category:  d.Category,
		Source:    d.Source,
		CreatedAt: d.CreatedAt,
		UpdatedAt: updatedAt,
	}

	if d.Tags != nil {
		if raw, err := json.Marshal(d.Tags); err == nil {
			out.Tags = datatypes.JSON(raw)
		}
	}
	if d.Analysis != nil {
		if raw, err := json.Marshal(d.Analysis); err == nil {
			out.Analysis = datatypes.JSON(raw)
		}
	}
	if d.Metadata != nil {
		if raw, err := json.Marshal(d.Metadata); err == nil {
			out.Metadata = datatypes.JSON(raw)
		}
	}
	if d.Embedding != nil {
		vec := pgvector.NewVector(d.Embedding)
		out.Embedding = &vec
	}

	return out
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
