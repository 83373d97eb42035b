package memory

import (
	"fmt"
	"testing"

	"essay-coach-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHistoryRoundTrip(t *testing.T) {
	repo := NewSessionRepository()
	sid := uuid.New()

	assert.Empty(t, repo.History(sid))

	repo.Append(sid, llm.UserText("hello"))
	repo.Append(sid, llm.Message{
		Role:    llm.RoleAssistant,
		Content: []llm.ContentBlock{{Type: llm.BlockTypeText, Text: "hi there"}},
	})

	history := repo.History(sid)
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)

	// Sessions are isolated
	assert.Empty(t, repo.History(uuid.New()))

	repo.Clear(sid)
	assert.Empty(t, repo.History(sid))
}

func TestSessionHistoryCapped(t *testing.T) {
	repo := NewSessionRepository()
	sid := uuid.New()

	for i := 0; i < 30; i++ {
		repo.Append(sid, llm.UserText(fmt.Sprintf("message %d", i)))
	}

	history := repo.History(sid)
	require.Len(t, history, maxHistoryTurns)
	// Oldest messages dropped first
	assert.Equal(t, "message 10", history[0].Content[0].Text)
}

func TestHistoryReturnsCopy(t *testing.T) {
	repo := NewSessionRepository()
	sid := uuid.New()
	repo.Append(sid, llm.UserText("original"))

	history := repo.History(sid)
	history[0] = llm.UserText("mutated")

	assert.Equal(t, "original", repo.History(sid)[0].Content[0].Text)
}
