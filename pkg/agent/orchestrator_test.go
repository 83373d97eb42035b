package agent

import (
	"context"
	"errors"
	"testing"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/repository/contract"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/embedding"
	"essay-coach-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeLLM struct {
	responses []*llm.Response
	errs      []error
	calls     [][]llm.Message
}

func (f *fakeLLM) Chat(_ context.Context, history []llm.Message, _ []llm.ToolDefinition, _ ...llm.Option) (*llm.Response, error) {
	i := len(f.calls)
	f.calls = append(f.calls, append([]llm.Message{}, history...))
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("no scripted response")
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{{Type: llm.BlockTypeText, Text: text}},
		StopReason: "end_turn",
	}
}

func toolUseResponse(id, name string, input map[string]interface{}) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{
			{Type: llm.BlockTypeToolUse, ID: id, Name: name, Input: input},
		},
		StopReason: "tool_use",
	}
}

type fakeDocs struct {
	scored    []*contract.ScoredDocument
	searchErr error
	tagDocs   []*entity.Document
	tagErr    error

	searchCalls int
	lastLimit   int
}

func (f *fakeDocs) Create(context.Context, *entity.Document) error { return nil }
func (f *fakeDocs) FindById(context.Context, uuid.UUID) (*entity.Document, error) {
	return nil, nil
}
func (f *fakeDocs) FindByTag(_ context.Context, _ string, _ string) ([]*entity.Document, error) {
	return f.tagDocs, f.tagErr
}
func (f *fakeDocs) UpdateEmbedding(context.Context, uuid.UUID, []float32) error { return nil }
func (f *fakeDocs) Delete(context.Context, uuid.UUID) error                     { return nil }
func (f *fakeDocs) CountByCategory(context.Context) (map[string]int64, error)   { return nil, nil }
func (f *fakeDocs) CountByTag(context.Context) (map[string]int64, error)        { return nil, nil }
func (f *fakeDocs) SearchSimilarWithScore(_ context.Context, _ []float32, limit int, _ string, _ float64) ([]*contract.ScoredDocument, error) {
	f.searchCalls++
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.scored, nil
}

// stubEmbedder returns a fixed unit vector; the first failUntil calls fail.
type stubEmbedder struct {
	calls     int
	failUntil int
}

func (p *stubEmbedder) Generate(_ string, _ string) (*embedding.EmbeddingResponse, error) {
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

func scoredDoc(title string, similarity float64) *contract.ScoredDocument {
	return &contract.ScoredDocument{
		Document: &entity.Document{
			Id:       uuid.New(),
			Title:    title,
			Content:  "An example essay body long enough to excerpt.",
			Category: constant.DocumentCategoryNarrative,
			Tags:     []string{"growth"},
		},
		Similarity: similarity,
	}
}

func newTestOrchestrator(provider llm.LLMProvider, docs contract.DocumentRepository, embedder embedding.EmbeddingProvider) *Orchestrator {
	registry := NewRegistry()
	executor := NewExecutor(
		analyzer.NewHeuristicAnalyzer(),
		embedding.NewEncoder(embedder),
		docs,
		0.78,
		nopLogger{},
	)
	return NewOrchestrator(provider, registry, executor, nopLogger{})
}

// --- turns without tools ---

func TestRunTurnPlainAnswer(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{textResponse("Your hook is strong.")}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "What do you think of my opening?")

	assert.Equal(t, "Your hook is strong.", result.Answer)
	assert.Empty(t, result.ToolName)
	assert.Len(t, fake.calls, 1)
}

func TestRunTurnEmptyResponseFallsBack(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{{Content: nil, StopReason: "end_turn"}}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Thoughts?")

	assert.Equal(t, constant.AgentFallbackAnswer, result.Answer)
}

func TestRunTurnModelError(t *testing.T) {
	fake := &fakeLLM{errs: []error{errors.New("upstream 500")}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Thoughts?")

	assert.Equal(t, constant.AgentToolApology, result.Answer)
	assert.Len(t, fake.calls, 1)
}

// --- the single tool round trip ---

func TestRunTurnToolRoundTrip(t *testing.T) {
	docs := &fakeDocs{scored: []*contract.ScoredDocument{
		scoredDoc("The Long Walk", 0.91),
		scoredDoc("Learning to Listen", 0.84),
	}}
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{
			"query": "essays about perseverance",
		}),
		textResponse("Here are two essays worth reading."),
	}}
	orch := newTestOrchestrator(fake, docs, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Show me similar essays")

	assert.Equal(t, "Here are two essays worth reading.", result.Answer)
	assert.Equal(t, ToolSearchSimilar, result.ToolName)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, 1, docs.searchCalls)
	assert.Equal(t, 5, docs.lastLimit)

	matches, ok := result.ToolResult.([]SearchMatch)
	require.True(t, ok)
	require.Len(t, matches, 2)
	assert.Equal(t, "The Long Walk", matches[0].Title)
	assert.InDelta(t, 0.91, matches[0].Similarity, 1e-9)

	// The follow-up call carries the assistant tool_use turn plus a
	// tool_result bound to the same invocation id.
	followUpHistory := fake.calls[1]
	last := followUpHistory[len(followUpHistory)-1]
	require.Len(t, last.Content, 1)
	assert.Equal(t, llm.BlockTypeToolResult, last.Content[0].Type)
	assert.Equal(t, "tu_1", last.Content[0].ToolUseID)
	assert.Contains(t, last.Content[0].Content, "The Long Walk")
}

func TestRunTurnSecondToolRequestIgnored(t *testing.T) {
	docs := &fakeDocs{scored: []*contract.ScoredDocument{scoredDoc("Roots", 0.88)}}
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"query": "heritage"}),
		toolUseResponse("tu_2", ToolSearchSimilar, map[string]interface{}{"query": "heritage again"}),
	}}
	orch := newTestOrchestrator(fake, docs, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Find heritage essays")

	// One round trip only: the follow-up's tool request is not executed and
	// the textless response degrades to the fallback answer.
	assert.Equal(t, constant.AgentFallbackAnswer, result.Answer)
	assert.Len(t, fake.calls, 2)
	assert.Equal(t, 1, docs.searchCalls)
}

func TestRunTurnAnalyzeTool(t *testing.T) {
	draft := "I grew up in my grandmother's kitchen. Flour on every surface, her hands folding dumplings while she told stories about the village she left. I learned patience there, and I learned that failure is just a fold you redo. When I struggled in my first year, I kept going despite everything, because the kitchen taught me how."
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_9", ToolAnalyzeText, map[string]interface{}{
			"text": draft,
			"mode": analyzer.ModeFull,
		}),
		textResponse("Your draft has a clear arc."),
	}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Analyze my draft")

	assert.Equal(t, "Your draft has a clear arc.", result.Answer)
	require.Equal(t, ToolAnalyzeText, result.ToolName)

	analysis, ok := result.ToolResult.(*analyzer.Analysis)
	require.True(t, ok)
	assert.NotEmpty(t, analysis.Topics)
	assert.NotEmpty(t, analysis.Strengths)
	assert.NotEmpty(t, analysis.Weaknesses)
	assert.NotEmpty(t, analysis.Suggestions)
}

// --- validation failures abort with the apology ---

func TestRunTurnUnknownToolApology(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", "rewrite_essay", map[string]interface{}{"text": "x"}),
	}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Rewrite it for me")

	assert.Equal(t, constant.AgentToolApology, result.Answer)
	assert.Empty(t, result.ToolName)
	assert.Len(t, fake.calls, 1)
}

func TestRunTurnInvalidArgumentsApology(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"count": float64(3)}),
	}}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Search for something")

	assert.Equal(t, constant.AgentToolApology, result.Answer)
	assert.Len(t, fake.calls, 1)
}

func TestRunTurnFollowUpModelError(t *testing.T) {
	fake := &fakeLLM{
		responses: []*llm.Response{
			toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"query": "belonging"}),
			nil,
		},
		errs: []error{nil, errors.New("upstream timeout")},
	}
	orch := newTestOrchestrator(fake, &fakeDocs{}, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Find essays about belonging")

	assert.Equal(t, constant.AgentToolApology, result.Answer)
	assert.Len(t, fake.calls, 2)
}

// --- embedding model warm-up ---

func TestRunTurnModelNotReadyThenRecovers(t *testing.T) {
	embedder := &stubEmbedder{failUntil: 1}
	docs := &fakeDocs{scored: []*contract.ScoredDocument{scoredDoc("Roots", 0.88)}}
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"query": "heritage"}),
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"query": "heritage"}),
		textResponse("Take a look at Roots."),
	}}
	orch := newTestOrchestrator(fake, docs, embedder)

	// First turn: the lazy model load fails, so the user is told to retry.
	first := orch.RunTurn(context.Background(), nil, "Find heritage essays")
	assert.Equal(t, constant.AgentModelNotReadyMessage, first.Answer)
	assert.Equal(t, 0, docs.searchCalls)

	// Second turn: the load succeeds and the search goes through.
	second := orch.RunTurn(context.Background(), nil, "Find heritage essays")
	assert.Equal(t, "Take a look at Roots.", second.Answer)
	assert.Equal(t, ToolSearchSimilar, second.ToolName)
	assert.Equal(t, 1, docs.searchCalls)
}

// --- store outages degrade to empty results ---

func TestRunTurnSearchOutageDegradesToEmpty(t *testing.T) {
	docs := &fakeDocs{searchErr: errors.New("connection refused")}
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolSearchSimilar, map[string]interface{}{"query": "community"}),
		textResponse("I couldn't find close matches, but here's my advice."),
	}}
	orch := newTestOrchestrator(fake, docs, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Find essays about community")

	assert.Equal(t, "I couldn't find close matches, but here's my advice.", result.Answer)
	matches, ok := result.ToolResult.([]SearchMatch)
	require.True(t, ok)
	assert.Empty(t, matches)
}

func TestRunTurnTopicOutageDegradesToEmpty(t *testing.T) {
	docs := &fakeDocs{tagErr: errors.New("connection refused")}
	fake := &fakeLLM{responses: []*llm.Response{
		toolUseResponse("tu_1", ToolGetExamplesByTopic, map[string]interface{}{"topic": "identity"}),
		textResponse("Nothing tagged identity yet."),
	}}
	orch := newTestOrchestrator(fake, docs, &stubEmbedder{})

	result := orch.RunTurn(context.Background(), nil, "Examples about identity?")

	assert.Equal(t, "Nothing tagged identity yet.", result.Answer)
	examples, ok := result.ToolResult.([]TopicExample)
	require.True(t, ok)
	assert.Empty(t, examples)
}

// --- executor-level behavior ---

func TestExecutorQueryEmbeddingMemoized(t *testing.T) {
	embedder := &stubEmbedder{}
	docs := &fakeDocs{}
	executor := NewExecutor(analyzer.NewHeuristicAnalyzer(), embedding.NewEncoder(embedder), docs, 0.78, nopLogger{})

	inv := &Invocation{ID: "tu_1", Name: ToolSearchSimilar, Args: SearchSimilarArgs{Query: "Quiet  Persistence", Count: 5}}
	_, err := executor.Execute(context.Background(), inv)
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	// Same query modulo whitespace and case hits the cache.
	inv2 := &Invocation{ID: "tu_2", Name: ToolSearchSimilar, Args: SearchSimilarArgs{Query: "quiet persistence", Count: 5}}
	_, err = executor.Execute(context.Background(), inv2)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, embedder.calls)
	assert.Equal(t, 2, docs.searchCalls)
}

func TestExecutorTopicLookupPayload(t *testing.T) {
	docs := &fakeDocs{tagDocs: []*entity.Document{
		{Id: uuid.New(), Title: "Roots", Category: constant.DocumentCategoryReflective, Tags: []string{"identity"}, Content: "body"},
	}}
	executor := NewExecutor(analyzer.NewHeuristicAnalyzer(), embedding.NewEncoder(&stubEmbedder{}), docs, 0.78, nopLogger{})

	payload, err := executor.Execute(context.Background(), &Invocation{
		ID: "tu_1", Name: ToolGetExamplesByTopic,
		Args: TopicLookupArgs{Topic: "identity"},
	})
	require.NoError(t, err)

	examples := payload.([]TopicExample)
	require.Len(t, examples, 1)
	assert.Equal(t, "Roots", examples[0].Title)
	assert.Equal(t, constant.DocumentCategoryReflective, examples[0].Category)
}

func TestExecutorTopicLookupRanksBySimilarity(t *testing.T) {
	axis := func(i int) []float32 {
		v := make([]float32, embedding.Dimension)
		v[i] = 1
		return v
	}
	// The stub embedder encodes every query as axis(0), so the axis(0)
	// document is the closer match regardless of stored order.
	far := &entity.Document{Id: uuid.New(), Title: "Sideways", Category: constant.DocumentCategoryNarrative, Tags: []string{"growth"}, Content: "body", Embedding: axis(1)}
	near := &entity.Document{Id: uuid.New(), Title: "Head On", Category: constant.DocumentCategoryNarrative, Tags: []string{"growth"}, Content: "body", Embedding: axis(0)}
	docs := &fakeDocs{tagDocs: []*entity.Document{far, near}}
	executor := NewExecutor(analyzer.NewHeuristicAnalyzer(), embedding.NewEncoder(&stubEmbedder{}), docs, 0.78, nopLogger{})

	payload, err := executor.Execute(context.Background(), &Invocation{
		ID: "tu_1", Name: ToolGetExamplesByTopic,
		Args: TopicLookupArgs{Topic: "growth"},
	})
	require.NoError(t, err)

	examples := payload.([]TopicExample)
	require.Len(t, examples, 2)
	assert.Equal(t, "Head On", examples[0].Title)
	assert.Equal(t, "Sideways", examples[1].Title)
}

func TestExecutorTopicLookupKeepsStoredOrderWithoutVectors(t *testing.T) {
	pending := &entity.Document{Id: uuid.New(), Title: "Still Embedding", Category: constant.DocumentCategoryNarrative, Tags: []string{"growth"}, Content: "body"}
	ready := &entity.Document{Id: uuid.New(), Title: "Ready", Category: constant.DocumentCategoryNarrative, Tags: []string{"growth"}, Content: "body"}
	ready.Embedding = make([]float32, embedding.Dimension)
	ready.Embedding[0] = 1
	docs := &fakeDocs{tagDocs: []*entity.Document{pending, ready}}

	// Encoder permanently down: lookup still answers, in stored order.
	executor := NewExecutor(analyzer.NewHeuristicAnalyzer(), embedding.NewEncoder(&stubEmbedder{failUntil: 1 << 30}), docs, 0.78, nopLogger{})
	payload, err := executor.Execute(context.Background(), &Invocation{
		ID: "tu_1", Name: ToolGetExamplesByTopic,
		Args: TopicLookupArgs{Topic: "growth"},
	})
	require.NoError(t, err)
	examples := payload.([]TopicExample)
	require.Len(t, examples, 2)
	assert.Equal(t, "Still Embedding", examples[0].Title)

	// Encoder healthy but one match has no vector yet: same fallback.
	executor = NewExecutor(analyzer.NewHeuristicAnalyzer(), embedding.NewEncoder(&stubEmbedder{}), docs, 0.78, nopLogger{})
	payload, err = executor.Execute(context.Background(), &Invocation{
		ID: "tu_2", Name: ToolGetExamplesByTopic,
		Args: TopicLookupArgs{Topic: "growth"},
	})
	require.NoError(t, err)
	examples = payload.([]TopicExample)
	require.Len(t, examples, 2)
	assert.Equal(t, "Still Embedding", examples[0].Title)
}
