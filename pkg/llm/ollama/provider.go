package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"essay-coach-be/pkg/llm"

	"github.com/google/uuid"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (*llm.Response, error) {
	// 1. Process Options
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	// 2. Map generic messages to Ollama messages
	ollamaMessages := make([]ollamaMessage, 0, len(history))
	for _, msg := range history {
		ollamaMessages = append(ollamaMessages, toOllamaMessage(msg))
	}

	// 3. Prepare Payload
	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}
	for _, tool := range tools {
		reqPayload.Tools = append(reqPayload.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// 4. Send Request
	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	// 5. Parse Response
	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return fromOllamaMessage(ollamaResp.Message), nil
}

// toOllamaMessage flattens generic content blocks into Ollama's message
// format. Tool results travel as a "tool" role message.
func toOllamaMessage(msg llm.Message) ollamaMessage {
	role := msg.Role
	if role == "model" {
		role = llm.RoleAssistant
	}

	out := ollamaMessage{Role: role}
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockTypeText:
			out.Content += block.Text
		case llm.BlockTypeToolUse:
			call := ollamaToolCall{}
			call.Function.Name = block.Name
			call.Function.Arguments = block.Input
			out.ToolCalls = append(out.ToolCalls, call)
		case llm.BlockTypeToolResult:
			out.Role = "tool"
			out.Content = block.Content
		}
	}
	return out
}

// fromOllamaMessage lifts an Ollama reply into generic content blocks.
// Ollama tool calls carry no identifier, so one is assigned here; the
// follow-up result is bound to it by the orchestrator.
func fromOllamaMessage(msg ollamaMessage) *llm.Response {
	resp := &llm.Response{}

	if msg.Content != "" {
		resp.Content = append(resp.Content, llm.ContentBlock{
			Type: llm.BlockTypeText,
			Text: msg.Content,
		})
	}
	for _, call := range msg.ToolCalls {
		resp.Content = append(resp.Content, llm.ContentBlock{
			Type:  llm.BlockTypeToolUse,
			ID:    uuid.NewString(),
			Name:  call.Function.Name,
			Input: call.Function.Arguments,
		})
		resp.StopReason = "tool_use"
	}

	return resp
}
