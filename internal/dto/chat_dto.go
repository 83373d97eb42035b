package dto

import (
	"encoding/json"
	"time"
)

// Websocket envelope types.
const (
	WsTypeUserMessage  = "user_message"
	WsTypeAgentTyping  = "agent_typing"
	WsTypeAgentMessage = "agent_message"
	WsTypeError        = "error"
)

// WsEnvelope wraps every frame on the chat socket.
type WsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type UserMessagePayload struct {
	Message string `json:"message" validate:"required"`
}

type AgentMessagePayload struct {
	Message   string    `json:"message"`
	ToolUsed  string    `json:"tool_used,omitempty"`
	SessionId string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type WsErrorPayload struct {
	Message string `json:"message"`
}
