package factory

import (
	"fmt"

	"essay-coach-be/pkg/llm"
	"essay-coach-be/pkg/llm/anthropic"
	"essay-coach-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured LLM backend.
func NewLLMProvider(providerName, modelName, ollamaBaseURL, anthropicKey string) (llm.LLMProvider, error) {
	switch providerName {
	case "ollama":
		if ollamaBaseURL == "" {
			ollamaBaseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(ollamaBaseURL, modelName), nil
	case "anthropic":
		return anthropic.NewAnthropicProvider(anthropicKey, modelName)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", providerName)
	}
}
