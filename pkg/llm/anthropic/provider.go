package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"essay-coach-be/pkg/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
	defaultModel     = "claude-3-5-sonnet-latest"
	defaultMaxTokens = 1024
)

type AnthropicProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

// Ensure AnthropicProvider implements LLMProvider
var _ llm.LLMProvider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, modelName string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &AnthropicProvider{
		BaseURL:   defaultBaseURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// --- Request/Response structs (Anthropic Messages API) ---

type messagesRequest struct {
	Model     string           `json:"model"`
	Messages  []messageParam   `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Temp      *float64         `json:"temperature,omitempty"`
	Tools     []toolDefinition `json:"tools,omitempty"`
}

type messageParam struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type toolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (p *AnthropicProvider) Chat(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (*llm.Response, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	// Split out the system prompt; Anthropic carries it outside messages
	var systemPrompt string
	apiMessages := make([]messageParam, 0, len(history))
	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			if text, ok := textOf(msg); ok {
				systemPrompt = text
			}
			continue
		}
		apiMessages = append(apiMessages, messageParam{
			Role:    msg.Role,
			Content: toAPIBlocks(msg.Content),
		})
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}
	maxTokens := options.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	reqPayload := messagesRequest{
		Model:     model,
		Messages:  apiMessages,
		MaxTokens: maxTokens,
		System:    systemPrompt,
	}
	if options.Temperature > 0 {
		reqPayload.Temp = &options.Temperature
	}
	for _, tool := range tools {
		reqPayload.Tools = append(reqPayload.Tools, toolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+messagesPath, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(bodyBytes, &msgResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if msgResp.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	return &llm.Response{
		Content:    fromAPIBlocks(msgResp.Content),
		StopReason: msgResp.StopReason,
	}, nil
}

func textOf(msg llm.Message) (string, bool) {
	for _, block := range msg.Content {
		if block.Type == llm.BlockTypeText {
			return block.Text, true
		}
	}
	return "", false
}

func toAPIBlocks(blocks []llm.ContentBlock) []contentBlock {
	out := make([]contentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = contentBlock{
			Type:      b.Type,
			Text:      b.Text,
			ID:        b.ID,
			Name:      b.Name,
			Input:     b.Input,
			ToolUseID: b.ToolUseID,
			Content:   b.Content,
		}
	}
	return out
}

func fromAPIBlocks(blocks []contentBlock) []llm.ContentBlock {
	out := make([]llm.ContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = llm.ContentBlock{
			Type:      b.Type,
			Text:      b.Text,
			ID:        b.ID,
			Name:      b.Name,
			Input:     b.Input,
			ToolUseID: b.ToolUseID,
			Content:   b.Content,
		}
	}
	return out
}
