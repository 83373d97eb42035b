package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/repository/contract"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes shared by the service tests ---

type fakeDocumentRepo struct {
	mu sync.Mutex

	created      []*entity.Document
	byId         map[uuid.UUID]*entity.Document
	embeddings   map[uuid.UUID][]float32
	findErr      error
	searchScored []*contract.ScoredDocument
	searchErr    error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{
		byId:       make(map[uuid.UUID]*entity.Document),
		embeddings: make(map[uuid.UUID][]float32),
	}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.Id == uuid.Nil {
		doc.Id = uuid.New()
	}
	f.created = append(f.created, doc)
	f.byId[doc.Id] = doc
	return nil
}

func (f *fakeDocumentRepo) FindById(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byId[id], nil
}

func (f *fakeDocumentRepo) FindByTag(context.Context, string, string) ([]*entity.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[id] = embedding
	return nil
}

func (f *fakeDocumentRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byId, id)
	return nil
}

func (f *fakeDocumentRepo) CountByCategory(context.Context) (map[string]int64, error) {
	return map[string]int64{constant.DocumentCategoryNarrative: 2}, nil
}

func (f *fakeDocumentRepo) CountByTag(context.Context) (map[string]int64, error) {
	return map[string]int64{"growth": 2}, nil
}

func (f *fakeDocumentRepo) SearchSimilarWithScore(context.Context, []float32, int, string, float64) ([]*contract.ScoredDocument, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchScored, nil
}

func (f *fakeDocumentRepo) storedEmbedding(id uuid.UUID) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddings[id]
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type stubEmbedder struct {
	mu        sync.Mutex
	calls     int
	failUntil int
}

func (p *stubEmbedder) Generate(string, string) (*embedding.EmbeddingResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failUntil {
		return nil, errors.New("model offline")
	}
	values := make([]float32, embedding.Dimension)
	values[0] = 1
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newCorpusService(repo *fakeDocumentRepo, pub *fakePublisher, embedder embedding.EmbeddingProvider) ICorpusService {
	return NewCorpusService(
		repo,
		analyzer.NewHeuristicAnalyzer(),
		embedding.NewEncoder(embedder),
		pub,
		nil, // no event bus in unit tests
		5,
		0.78,
		nopLogger{},
	)
}

// --- tests ---

func TestCreateDocumentQueuesEmbedding(t *testing.T) {
	repo := newFakeDocumentRepo()
	pub := &fakePublisher{}
	svc := newCorpusService(repo, pub, &stubEmbedder{})

	res, err := svc.CreateDocument(context.Background(), &dto.CreateDocumentRequest{
		Title:    "The Kitchen Table",
		Content:  "I grew up at my grandmother's kitchen table and learned that failure is just a fold you redo.",
		Category: constant.DocumentCategoryNarrative,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.Id)
	assert.False(t, res.HasEmbedding)
	assert.NotNil(t, res.Analysis)
	// Tags default to detected topics when the request carries none
	assert.NotEmpty(t, res.Tags)

	require.Len(t, pub.payloads, 1)
	assert.Contains(t, string(pub.payloads[0]), res.Id.String())
}

func TestCreateDocumentRejectsBadCategory(t *testing.T) {
	svc := newCorpusService(newFakeDocumentRepo(), &fakePublisher{}, &stubEmbedder{})

	_, err := svc.CreateDocument(context.Background(), &dto.CreateDocumentRequest{
		Title:    "x",
		Content:  "y",
		Category: "haiku",
	})
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestCreateDocumentSurfacesPublishFailure(t *testing.T) {
	repo := newFakeDocumentRepo()
	pub := &fakePublisher{err: errors.New("bus closed")}
	svc := newCorpusService(repo, pub, &stubEmbedder{})

	_, err := svc.CreateDocument(context.Background(), &dto.CreateDocumentRequest{
		Title:    "x",
		Content:  "y",
		Category: constant.DocumentCategoryNarrative,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue document for embedding")
}

func TestGetDocumentNotFound(t *testing.T) {
	svc := newCorpusService(newFakeDocumentRepo(), &fakePublisher{}, &stubEmbedder{})

	_, err := svc.GetDocument(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSearchPropagatesModelNotReady(t *testing.T) {
	embedder := &stubEmbedder{failUntil: 1000}
	svc := newCorpusService(newFakeDocumentRepo(), &fakePublisher{}, embedder)

	_, err := svc.Search(context.Background(), &dto.SearchDocumentsRequest{Query: "belonging"})
	require.ErrorIs(t, err, embedding.ErrModelNotReady)
}

func TestSearchSurfacesStoreError(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.searchErr = errors.New("connection refused")
	svc := newCorpusService(repo, &fakePublisher{}, &stubEmbedder{})

	_, err := svc.Search(context.Background(), &dto.SearchDocumentsRequest{Query: "belonging"})
	require.Error(t, err)
}

func TestSearchMapsMatches(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.searchScored = []*contract.ScoredDocument{
		{
			Document: &entity.Document{
				Id:       uuid.New(),
				Title:    "Roots",
				Category: constant.DocumentCategoryReflective,
				Content:  "body",
				Tags:     []string{"identity"},
			},
			Similarity: 0.83,
		},
	}
	svc := newCorpusService(repo, &fakePublisher{}, &stubEmbedder{})

	matches, err := svc.Search(context.Background(), &dto.SearchDocumentsRequest{Query: "who am i"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Roots", matches[0].Title)
	assert.InDelta(t, 0.83, matches[0].Similarity, 1e-9)
}

func TestAnalyzeRejectsUnknownMode(t *testing.T) {
	svc := newCorpusService(newFakeDocumentRepo(), &fakePublisher{}, &stubEmbedder{})

	_, err := svc.Analyze(context.Background(), &dto.AnalyzeTextRequest{Text: "draft", Mode: "grammar"})
	require.Error(t, err)

	// Empty mode defaults to full
	analysis, err := svc.Analyze(context.Background(), &dto.AnalyzeTextRequest{Text: "I learned to keep going despite failure."})
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.Topics)
}

func TestStats(t *testing.T) {
	svc := newCorpusService(newFakeDocumentRepo(), &fakePublisher{}, &stubEmbedder{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ByCategory[constant.DocumentCategoryNarrative])
	assert.Equal(t, int64(2), stats.ByTag["growth"])
}
