package agent

import (
	"errors"
	"fmt"

	"essay-coach-be/internal/constant"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/llm"
)

// Tool names, fixed at startup.
const (
	ToolAnalyzeText        = "analyze_text"
	ToolSearchSimilar      = "search_similar"
	ToolGetExamplesByTopic = "get_examples_by_topic"
)

const defaultSearchCount = 5

// Turn-level validation failures. Both abort the turn with a canned apology;
// the conversation continues on the next turn.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

var analysisModes = []string{analyzer.ModeFull, analyzer.ModeStructure, analyzer.ModeStyle}

// ToolArgs is the closed set of validated per-tool argument structures.
type ToolArgs interface {
	toolName() string
}

type AnalyzeTextArgs struct {
	Text string
	Mode string
}

func (AnalyzeTextArgs) toolName() string { return ToolAnalyzeText }

type SearchSimilarArgs struct {
	Query    string
	Category string // "" means no filter
	Count    int
}

func (SearchSimilarArgs) toolName() string { return ToolSearchSimilar }

type TopicLookupArgs struct {
	Topic    string
	Category string // "" means no filter
}

func (TopicLookupArgs) toolName() string { return ToolGetExamplesByTopic }

// Invocation is a validated tool call, bound to the model's invocation id.
type Invocation struct {
	ID   string
	Name string
	Args ToolArgs
}

// Registry holds the three fixed tool schemas and validates invocations
// against them before dispatch.
type Registry struct {
	definitions []llm.ToolDefinition
}

func NewRegistry() *Registry {
	return &Registry{
		definitions: []llm.ToolDefinition{
			{
				Name:        ToolAnalyzeText,
				Description: "Produce a structural breakdown (hook, setup, conflict, insight, conclusion), topic tags, and qualitative feedback for a piece of writing.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"text": map[string]interface{}{
							"type":        "string",
							"description": "The draft text to analyze",
						},
						"mode": map[string]interface{}{
							"type":        "string",
							"enum":        analysisModes,
							"description": "Analysis mode",
						},
					},
					"required": []string{"text", "mode"},
				},
			},
			{
				Name:        ToolSearchSimilar,
				Description: "Find example essays from the corpus that are semantically similar to a query text.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "Text to search with",
						},
						"category": map[string]interface{}{
							"type":        "string",
							"enum":        constant.DocumentCategories,
							"description": "Optional category filter",
						},
						"count": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of results (default 5)",
						},
					},
					"required": []string{"query"},
				},
			},
			{
				Name:        ToolGetExamplesByTopic,
				Description: "Fetch example essays tagged with a given topic.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"topic": map[string]interface{}{
							"type":        "string",
							"description": "Topic tag, e.g. identity, growth, ambition",
						},
						"category": map[string]interface{}{
							"type":        "string",
							"enum":        constant.DocumentCategories,
							"description": "Optional category filter",
						},
					},
					"required": []string{"topic"},
				},
			},
		},
	}
}

// Definitions returns the tool schemas in the shape consumed by the LLM.
func (r *Registry) Definitions() []llm.ToolDefinition {
	return r.definitions
}

// Validate checks a raw invocation against the matching schema and returns
// its typed argument structure.
func (r *Registry) Validate(id, name string, input map[string]interface{}) (*Invocation, error) {
	switch name {
	case ToolAnalyzeText:
		text, err := requireString(input, "text")
		if err != nil {
			return nil, err
		}
		mode, err := requireString(input, "mode")
		if err != nil {
			return nil, err
		}
		if err := checkEnum("mode", mode, analysisModes); err != nil {
			return nil, err
		}
		return &Invocation{ID: id, Name: name, Args: AnalyzeTextArgs{Text: text, Mode: mode}}, nil

	case ToolSearchSimilar:
		query, err := requireString(input, "query")
		if err != nil {
			return nil, err
		}
		category, err := optionalCategory(input)
		if err != nil {
			return nil, err
		}
		count := optionalInt(input, "count", defaultSearchCount)
		return &Invocation{ID: id, Name: name, Args: SearchSimilarArgs{Query: query, Category: category, Count: count}}, nil

	case ToolGetExamplesByTopic:
		topic, err := requireString(input, "topic")
		if err != nil {
			return nil, err
		}
		category, err := optionalCategory(input)
		if err != nil {
			return nil, err
		}
		return &Invocation{ID: id, Name: name, Args: TopicLookupArgs{Topic: topic, Category: category}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func requireString(input map[string]interface{}, key string) (string, error) {
	raw, ok := input[key]
	if !ok {
		return "", fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: parameter %q must be a non-empty string", ErrInvalidArguments, key)
	}
	return value, nil
}

func optionalCategory(input map[string]interface{}) (string, error) {
	raw, ok := input["category"]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string", ErrInvalidArguments, "category")
	}
	if value == "" {
		return "", nil
	}
	if !constant.IsValidDocumentCategory(value) {
		return "", fmt.Errorf("%w: %q is not a valid category", ErrInvalidArguments, value)
	}
	return value, nil
}

func optionalInt(input map[string]interface{}, key string, fallback int) int {
	raw, ok := input[key]
	if !ok {
		return fallback
	}
	// JSON numbers decode as float64
	switch v := raw.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}

func checkEnum(key, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: parameter %q value %q is outside its legal set", ErrInvalidArguments, key, value)
}
