package service

import (
	"context"
	"encoding/json"
	"time"

	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/pkg/logger"
	"essay-coach-be/internal/repository/memory"
	"essay-coach-be/internal/websocket"
	"essay-coach-be/pkg/agent"
	"essay-coach-be/pkg/events"
	"essay-coach-be/pkg/llm"
	pktNats "essay-coach-be/pkg/nats"

	"github.com/google/uuid"
)

const turnTimeout = 90 * time.Second

type IChatService interface {
	// HandleIncoming consumes one raw websocket frame for a session. It is
	// shaped to plug straight into the hub as the inbound handler.
	HandleIncoming(sessionID uuid.UUID, frame []byte)
}

type chatService struct {
	orchestrator   *agent.Orchestrator
	sessions       memory.SessionRepository
	hub            *websocket.Hub
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewChatService(
	orchestrator *agent.Orchestrator,
	sessions memory.SessionRepository,
	hub *websocket.Hub,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		orchestrator:   orchestrator,
		sessions:       sessions,
		hub:            hub,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *chatService) HandleIncoming(sessionID uuid.UUID, frame []byte) {
	var envelope dto.WsEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		s.sendError(sessionID, "Malformed message")
		return
	}
	if envelope.Type != dto.WsTypeUserMessage {
		s.sendError(sessionID, "Unsupported message type")
		return
	}

	var payload dto.UserMessagePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.Message == "" {
		s.sendError(sessionID, "Message text is required")
		return
	}

	// Run the turn off the read pump so pings keep flowing during long turns.
	go s.processTurn(sessionID, payload.Message)
}

func (s *chatService) processTurn(sessionID uuid.UUID, userMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	s.sendFrame(sessionID, dto.WsTypeAgentTyping, nil)

	history := s.sessions.History(sessionID)
	result := s.orchestrator.RunTurn(ctx, history, userMessage)

	s.sessions.Append(sessionID,
		llm.UserText(userMessage),
		llm.Message{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentBlock{{Type: llm.BlockTypeText, Text: result.Answer}},
		},
	)

	s.sendFrame(sessionID, dto.WsTypeAgentMessage, dto.AgentMessagePayload{
		Message:   result.Answer,
		ToolUsed:  result.ToolName,
		SessionId: sessionID.String(),
		Timestamp: time.Now(),
	})

	if s.eventPublisher != nil {
		evt := events.New(events.TypeAgentTurnCompleted, map[string]interface{}{
			"session_id": sessionID.String(),
			"tool_used":  result.ToolName,
		})
		// Auxiliary: log and move on if the bus is down
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("chat", "failed to publish turn event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
}

func (s *chatService) sendError(sessionID uuid.UUID, message string) {
	s.sendFrame(sessionID, dto.WsTypeError, dto.WsErrorPayload{Message: message})
}

func (s *chatService) sendFrame(sessionID uuid.UUID, frameType string, data interface{}) {
	envelope := map[string]interface{}{"type": frameType}
	if data != nil {
		envelope["data"] = data
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("chat", "failed to marshal frame", map[string]interface{}{"error": err.Error()})
		return
	}
	s.hub.Send(sessionID, raw)
}
