package agent

import (
	"context"
	"fmt"
	"time"

	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/pkg/logger"
	"essay-coach-be/internal/repository/contract"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/embedding"
	"essay-coach-be/pkg/similarity"

	gocache "github.com/patrickmn/go-cache"
)

const (
	queryEmbeddingTTL     = 10 * time.Minute
	queryEmbeddingCleanup = 30 * time.Minute
	excerptRunes          = 280
)

// SearchMatch is one similarity hit as exposed to the model.
type SearchMatch struct {
	Id         string   `json:"id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags,omitempty"`
	Excerpt    string   `json:"excerpt"`
	Similarity float64  `json:"similarity"`
}

// TopicExample is one tag-lookup hit as exposed to the model.
type TopicExample struct {
	Id       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	Excerpt  string   `json:"excerpt"`
}

// Executor runs validated tool invocations against the analyzer, encoder and
// document store. Store reads degrade to empty result sets so a corpus outage
// never kills a conversation; ErrModelNotReady is the one read-path error
// allowed through, since the caller owes the user a "try again" message.
type Executor struct {
	analyzer   analyzer.Analyzer
	encoder    *embedding.Encoder
	documents  contract.DocumentRepository
	queryCache *gocache.Cache
	threshold  float64
	logger     logger.ILogger
}

func NewExecutor(az analyzer.Analyzer, encoder *embedding.Encoder, documents contract.DocumentRepository, threshold float64, log logger.ILogger) *Executor {
	return &Executor{
		analyzer:   az,
		encoder:    encoder,
		documents:  documents,
		queryCache: gocache.New(queryEmbeddingTTL, queryEmbeddingCleanup),
		threshold:  threshold,
		logger:     log,
	}
}

// Execute dispatches on the validated argument type and returns a
// JSON-serializable payload for the tool_result block.
func (e *Executor) Execute(ctx context.Context, inv *Invocation) (interface{}, error) {
	switch args := inv.Args.(type) {
	case AnalyzeTextArgs:
		return e.analyzeText(ctx, args)
	case SearchSimilarArgs:
		return e.searchSimilar(ctx, args)
	case TopicLookupArgs:
		return e.examplesByTopic(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, inv.Name)
	}
}

func (e *Executor) analyzeText(_ context.Context, args AnalyzeTextArgs) (interface{}, error) {
	analysis, err := e.analyzer.Analyze(args.Text, args.Mode)
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

func (e *Executor) searchSimilar(ctx context.Context, args SearchSimilarArgs) (interface{}, error) {
	vector, err := e.queryEmbedding(ctx, args.Query)
	if err != nil {
		// ErrModelNotReady included: the orchestrator turns it into a
		// retryable user-facing message.
		return nil, err
	}

	scored, err := e.documents.SearchSimilarWithScore(ctx, vector, args.Count, args.Category, e.threshold)
	if err != nil {
		e.logger.Warn("agent", "similarity search degraded to empty results", map[string]interface{}{
			"error":    err.Error(),
			"category": args.Category,
		})
		return []SearchMatch{}, nil
	}

	matches := make([]SearchMatch, len(scored))
	for i, s := range scored {
		matches[i] = SearchMatch{
			Id:         s.Document.Id.String(),
			Title:      s.Document.Title,
			Category:   s.Document.Category,
			Tags:       s.Document.Tags,
			Excerpt:    excerpt(s.Document.Content),
			Similarity: s.Similarity,
		}
	}
	return matches, nil
}

func (e *Executor) examplesByTopic(ctx context.Context, args TopicLookupArgs) (interface{}, error) {
	docs, err := e.documents.FindByTag(ctx, args.Topic, args.Category)
	if err != nil {
		e.logger.Warn("agent", "topic lookup degraded to empty results", map[string]interface{}{
			"error": err.Error(),
			"topic": args.Topic,
		})
		return []TopicExample{}, nil
	}

	docs = e.rankByTopic(ctx, args.Topic, docs)
	if len(docs) > defaultSearchCount {
		docs = docs[:defaultSearchCount]
	}

	examples := make([]TopicExample, len(docs))
	for i, d := range docs {
		examples[i] = TopicExample{
			Id:       d.Id.String(),
			Title:    d.Title,
			Category: d.Category,
			Tags:     d.Tags,
			Excerpt:  excerpt(d.Content),
		}
	}
	return examples, nil
}

// rankByTopic orders tag matches by vector similarity to the topic phrase.
// Tag lookup must keep working without the embedding model, so ranking is
// best effort: if the model is not ready or any match is still waiting for
// its vector, the stored order stands.
func (e *Executor) rankByTopic(ctx context.Context, topic string, docs []*entity.Document) []*entity.Document {
	if len(docs) < 2 {
		return docs
	}

	vector, err := e.queryEmbedding(ctx, topic)
	if err != nil {
		return docs
	}

	candidates := make([][]float32, len(docs))
	for i, d := range docs {
		if len(d.Embedding) != len(vector) {
			return docs
		}
		candidates[i] = d.Embedding
	}

	ranked, err := similarity.TopK(vector, candidates, len(docs))
	if err != nil {
		return docs
	}

	out := make([]*entity.Document, len(ranked))
	for i, s := range ranked {
		out[i] = docs[s.Index]
	}
	return out
}

// queryEmbedding memoizes encodings of recent queries; retyping the same
// question should not cost another round trip to the embedding model.
func (e *Executor) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := embedding.Preprocess(query)
	if cached, found := e.queryCache.Get(key); found {
		return cached.([]float32), nil
	}

	vector, err := e.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	e.queryCache.Set(key, vector, gocache.DefaultExpiration)
	return vector, nil
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "…"
}
