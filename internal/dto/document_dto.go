package dto

import (
	"time"

	"essay-coach-be/pkg/analyzer"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	// Title is optional; untitled drafts are valid corpus entries.
	Title    string                 `json:"title"`
	Content  string                 `json:"content" validate:"required"`
	Category string                 `json:"category" validate:"required"`
	Source   string                 `json:"source"`
	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata"`
}

type DocumentResponse struct {
	Id           uuid.UUID              `json:"id"`
	Title        string                 `json:"title"`
	Content      string                 `json:"content"`
	Category     string                 `json:"category"`
	Source       string                 `json:"source,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Analysis     *analyzer.Analysis     `json:"analysis,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	HasEmbedding bool                   `json:"has_embedding"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    *time.Time             `json:"updated_at,omitempty"`
}

type SearchDocumentsRequest struct {
	Query    string `json:"query" validate:"required"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

type SearchMatchResponse struct {
	Id         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags,omitempty"`
	Excerpt    string    `json:"excerpt"`
	Similarity float64   `json:"similarity"`
}

type AnalyzeTextRequest struct {
	Text string `json:"text" validate:"required"`
	Mode string `json:"mode"`
}

type CorpusStatsResponse struct {
	ByCategory map[string]int64 `json:"by_category"`
	ByTag      map[string]int64 `json:"by_tag"`
}

// PublishEmbedDocumentMessage is the ingestion pipeline payload: the consumer
// re-reads the document by id, so content changes between publish and consume
// are picked up for free.
type PublishEmbedDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
