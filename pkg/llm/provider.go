package llm

import (
	"context"
)

// Roles in a provider-agnostic chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Content block types exchanged with tool-capable models.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock is a union type for text, tool_use, and tool_result blocks.
type ContentBlock struct {
	Type string
	Text string

	// tool_use fields
	ID    string
	Name  string
	Input map[string]interface{}

	// tool_result fields
	ToolUseID string
	Content   string
}

// Message represents a single conversational turn in a provider-agnostic format.
type Message struct {
	Role    string
	Content []ContentBlock
}

// UserText builds a plain-text user message.
func UserText(text string) Message {
	return Message{
		Role:    RoleUser,
		Content: []ContentBlock{{Type: BlockTypeText, Text: text}},
	}
}

// ToolResultMessage binds a tool's serialized result to the invocation that
// requested it.
func ToolResultMessage(toolUseID, result string) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{{
			Type:      BlockTypeToolResult,
			ToolUseID: toolUseID,
			Content:   result,
		}},
	}
}

// ToolDefinition describes a callable tool in JSON-schema shape.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Response is a model reply, possibly containing a tool invocation block.
type Response struct {
	Content    []ContentBlock
	StopReason string
}

// TextBlock returns the concatenated text blocks of the response.
func (r *Response) TextBlock() (string, bool) {
	var text string
	found := false
	for _, block := range r.Content {
		if block.Type == BlockTypeText && block.Text != "" {
			text += block.Text
			found = true
		}
	}
	return text, found
}

// ToolUseBlock returns the first tool-invocation block, if any.
func (r *Response) ToolUseBlock() (*ContentBlock, bool) {
	for i := range r.Content {
		if r.Content[i].Type == BlockTypeToolUse {
			return &r.Content[i], true
		}
	}
	return nil, false
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any tool-capable LLM backend.
type LLMProvider interface {
	// Chat sends a chat history plus tool definitions to the model and
	// returns its response. An empty tools slice disables tool use.
	Chat(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (*Response, error)
}
