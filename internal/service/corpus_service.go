package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/pkg/logger"
	"essay-coach-be/internal/repository/contract"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/embedding"
	"essay-coach-be/pkg/events"
	pktNats "essay-coach-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidCategory  = errors.New("invalid document category")
	ErrDocumentNotFound = errors.New("document not found")
)

type ICorpusService interface {
	CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, req *dto.SearchDocumentsRequest) ([]*dto.SearchMatchResponse, error)
	Analyze(ctx context.Context, req *dto.AnalyzeTextRequest) (*analyzer.Analysis, error)
	Stats(ctx context.Context) (*dto.CorpusStatsResponse, error)
}

type corpusService struct {
	documents        contract.DocumentRepository
	analyzer         analyzer.Analyzer
	encoder          *embedding.Encoder
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	searchLimit      int
	searchThreshold  float64
	logger           logger.ILogger
}

func NewCorpusService(
	documents contract.DocumentRepository,
	az analyzer.Analyzer,
	encoder *embedding.Encoder,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	searchLimit int,
	searchThreshold float64,
	log logger.ILogger,
) ICorpusService {
	return &corpusService{
		documents:        documents,
		analyzer:         az,
		encoder:          encoder,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		searchLimit:      searchLimit,
		searchThreshold:  searchThreshold,
		logger:           log,
	}
}

// CreateDocument stores a new example essay and queues it for embedding. The
// analysis is computed inline; the embedding arrives asynchronously via the
// ingestion consumer, so the document is not searchable until then.
func (s *corpusService) CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	if !constant.IsValidDocumentCategory(req.Category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	analysis, err := s.analyzer.Analyze(req.Content, analyzer.ModeFull)
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	tags := req.Tags
	if len(tags) == 0 {
		tags = analysis.Topics
	}

	doc := &entity.Document{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Source:   req.Source,
		Tags:     tags,
		Analysis: analysis,
		Metadata: req.Metadata,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	payload, _ := json.Marshal(dto.PublishEmbedDocumentMessage{DocumentId: doc.Id})
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		// The row exists but will not get an embedding; surface it so the
		// caller can retry the insert.
		return nil, fmt.Errorf("queue document for embedding: %w", err)
	}

	if s.eventPublisher != nil {
		evt := events.New(events.TypeDocumentIngested, map[string]interface{}{
			"document_id": doc.Id.String(),
			"category":    doc.Category,
		})
		// Auxiliary: log and move on if the bus is down
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("corpus", "failed to publish ingest event", map[string]interface{}{
				"document_id": doc.Id,
				"error":       err.Error(),
			})
		}
	}

	s.logger.Info("corpus", "document created", map[string]interface{}{
		"document_id": doc.Id,
		"category":    doc.Category,
	})
	return toDocumentResponse(doc), nil
}

func (s *corpusService) GetDocument(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.documents.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return toDocumentResponse(doc), nil
}

func (s *corpusService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	err := s.documents.Delete(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// Search runs ANN retrieval against the corpus. Unlike the conversational
// path, errors here surface: an API caller asked for search explicitly and
// deserves to know it failed.
func (s *corpusService) Search(ctx context.Context, req *dto.SearchDocumentsRequest) ([]*dto.SearchMatchResponse, error) {
	if req.Category != "" && !constant.IsValidDocumentCategory(req.Category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	vector, err := s.encoder.Encode(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.searchLimit
	}

	scored, err := s.documents.SearchSimilarWithScore(ctx, vector, limit, req.Category, s.searchThreshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	matches := make([]*dto.SearchMatchResponse, len(scored))
	for i, sc := range scored {
		matches[i] = &dto.SearchMatchResponse{
			Id:         sc.Document.Id,
			Title:      sc.Document.Title,
			Category:   sc.Document.Category,
			Tags:       sc.Document.Tags,
			Excerpt:    contentExcerpt(sc.Document.Content),
			Similarity: sc.Similarity,
		}
	}
	return matches, nil
}

func (s *corpusService) Analyze(_ context.Context, req *dto.AnalyzeTextRequest) (*analyzer.Analysis, error) {
	mode := req.Mode
	if mode == "" {
		mode = analyzer.ModeFull
	}
	switch mode {
	case analyzer.ModeFull, analyzer.ModeStructure, analyzer.ModeStyle:
	default:
		return nil, fmt.Errorf("invalid analysis mode %q", mode)
	}
	return s.analyzer.Analyze(req.Text, mode)
}

func (s *corpusService) Stats(ctx context.Context) (*dto.CorpusStatsResponse, error) {
	byCategory, err := s.documents.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	byTag, err := s.documents.CountByTag(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.CorpusStatsResponse{
		ByCategory: byCategory,
		ByTag:      byTag,
	}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func toDocumentResponse(doc *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:           doc.Id,
		Title:        doc.Title,
		Content:      doc.Content,
		Category:     doc.Category,
		Source:       doc.Source,
		Tags:         doc.Tags,
		Analysis:     doc.Analysis,
		Metadata:     doc.Metadata,
		HasEmbedding: len(doc.Embedding) > 0,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func contentExcerpt(content string) string {
	const maxRunes = 280
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "…"
}
