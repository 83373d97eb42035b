package entity

import (
	"time"

	"essay-coach-be/pkg/analyzer"

	"github.com/google/uuid"
)

// Document is a corpus entry: an example essay with optional embedding and
// structural analysis. If Embedding is non-nil it carries exactly the
// configured dimension (384); it is computed and written independently of the
// other fields by the ingestion consumer.
type Document struct {
	Id        uuid.UUID
	Title     string
	Content   string
	Category  string
	Source    string
	Tags      []string
	Analysis  *analyzer.Analysis
	Metadata  map[string]interface{}
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt *time.Time
}
