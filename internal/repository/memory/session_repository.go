package memory

import (
	"sync"
	"time"

	"essay-coach-be/pkg/llm"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	sessionTTL      = 30 * time.Minute
	sessionCleanup  = 10 * time.Minute
	maxHistoryTurns = 20 // messages, not user turns; oldest drop first
)

// SessionRepository keeps per-session chat history in process memory.
// Sessions expire after idle TTL; an expired session simply starts fresh.
type SessionRepository interface {
	History(sessionID uuid.UUID) []llm.Message
	Append(sessionID uuid.UUID, messages ...llm.Message)
	Clear(sessionID uuid.UUID)
}

type sessionRepository struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

func NewSessionRepository() SessionRepository {
	return &sessionRepository{
		cache: gocache.New(sessionTTL, sessionCleanup),
	}
}

func (r *sessionRepository) History(sessionID uuid.UUID) []llm.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, found := r.cache.Get(sessionID.String()); found {
		history := cached.([]llm.Message)
		return append([]llm.Message{}, history...)
	}
	return nil
}

func (r *sessionRepository) Append(sessionID uuid.UUID, messages ...llm.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []llm.Message
	if cached, found := r.cache.Get(sessionID.String()); found {
		history = cached.([]llm.Message)
	}
	history = append(history, messages...)
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	r.cache.Set(sessionID.String(), history, gocache.DefaultExpiration)
}

func (r *sessionRepository) Clear(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID.String())
}
