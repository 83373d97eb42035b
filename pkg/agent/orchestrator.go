package agent

import (
	"context"
	"encoding/json"
	"errors"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/pkg/logger"
	"essay-coach-be/pkg/embedding"
	"essay-coach-be/pkg/llm"
)

// Turn states. A turn walks Idle → AwaitingModelResponse →
// (ToolRequested | Answering) → AwaitingFollowUp → Done; the follow-up leg
// runs at most once per turn.
type turnState int

const (
	stateIdle turnState = iota
	stateAwaitingModelResponse
	stateToolRequested
	stateAnswering
	stateAwaitingFollowUp
	stateDone
)

const systemPrompt = `You are a writing coach helping a student iterate on an essay draft. ` +
	`You can analyze their text, pull up similar example essays, and fetch examples by topic. ` +
	`Use at most one tool per reply, only when it genuinely helps, and keep your feedback concrete and encouraging.`

// TurnResult is the outcome of one conversational turn. Answer is always
// populated; failures inside the turn surface as canned replies, never as
// errors to the caller.
type TurnResult struct {
	Answer     string
	ToolName   string
	ToolResult interface{}
}

// Orchestrator drives a single user message through the model, at most one
// tool invocation, and at most one follow-up model call.
type Orchestrator struct {
	provider llm.LLMProvider
	registry *Registry
	executor *Executor
	logger   logger.ILogger
}

func NewOrchestrator(provider llm.LLMProvider, registry *Registry, executor *Executor, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		registry: registry,
		executor: executor,
		logger:   log,
	}
}

// RunTurn processes one user message to completion. history is the prior
// conversation (may be empty); the user message is appended to it.
func (o *Orchestrator) RunTurn(ctx context.Context, history []llm.Message, userMessage string) *TurnResult {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: []llm.ContentBlock{{Type: llm.BlockTypeText, Text: systemPrompt}},
	})
	messages = append(messages, history...)
	messages = append(messages, llm.UserText(userMessage))
	tools := o.registry.Definitions()

	result := &TurnResult{}

	var (
		state      = stateIdle
		resp       *llm.Response
		invocation *Invocation
		followUp   bool
	)

	for state != stateDone {
		switch state {

		case stateIdle:
			var err error
			resp, err = o.provider.Chat(ctx, messages, tools, llm.WithTemperature(0.7))
			if err != nil {
				o.logger.Error("agent", "model call failed", map[string]interface{}{"error": err.Error()})
				result.Answer = constant.AgentToolApology
				state = stateDone
				break
			}
			state = stateAwaitingModelResponse

		case stateAwaitingModelResponse:
			if block, ok := resp.ToolUseBlock(); ok && !followUp {
				invocation = nil
				validated, err := o.registry.Validate(block.ID, block.Name, block.Input)
				if err != nil {
					o.logger.Warn("agent", "tool invocation rejected", map[string]interface{}{
						"tool":  block.Name,
						"error": err.Error(),
					})
					result.Answer = constant.AgentToolApology
					state = stateDone
					break
				}
				invocation = validated
				state = stateToolRequested
				break
			}
			// A tool_use block in the follow-up response is ignored: one
			// round trip per turn, so we fall through to answering.
			state = stateAnswering

		case stateToolRequested:
			payload, err := o.executor.Execute(ctx, invocation)
			if err != nil {
				if errors.Is(err, embedding.ErrModelNotReady) {
					result.Answer = constant.AgentModelNotReadyMessage
				} else {
					o.logger.Error("agent", "tool execution failed", map[string]interface{}{
						"tool":  invocation.Name,
						"error": err.Error(),
					})
					result.Answer = constant.AgentToolApology
				}
				state = stateDone
				break
			}
			result.ToolName = invocation.Name
			result.ToolResult = payload

			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.ToolResultMessage(invocation.ID, serializeToolResult(payload)),
			)
			state = stateAwaitingFollowUp

		case stateAwaitingFollowUp:
			followUp = true
			var err error
			resp, err = o.provider.Chat(ctx, messages, tools, llm.WithTemperature(0.7))
			if err != nil {
				o.logger.Error("agent", "follow-up model call failed", map[string]interface{}{"error": err.Error()})
				result.Answer = constant.AgentToolApology
				state = stateDone
				break
			}
			state = stateAwaitingModelResponse

		case stateAnswering:
			if text, ok := resp.TextBlock(); ok {
				result.Answer = text
			} else {
				result.Answer = constant.AgentFallbackAnswer
			}
			state = stateDone
		}
	}

	return result
}

func serializeToolResult(payload interface{}) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
