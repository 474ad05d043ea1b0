package usecase

import (
	"fmt"
	"sync"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// SessionRegistry maps session ids to their retrievers. It is the one
// process-wide piece of retrieval state, with an explicit lifecycle:
// entries appear on session creation and disappear on destruction, and
// nothing else reaches into it.
type SessionRegistry struct {
	factory func() *SessionRetriever

	mu       sync.RWMutex
	sessions map[string]*SessionRetriever
}

func NewSessionRegistry(factory func() *SessionRetriever) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		sessions: make(map[string]*SessionRetriever),
	}
}

func (reg *SessionRegistry) Create(sessionID string) error {
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create session",
			fmt.Errorf("empty session id"))
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.sessions[sessionID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create session",
			fmt.Errorf("session %s already exists", sessionID))
	}
	reg.sessions[sessionID] = reg.factory()
	return nil
}

// Get returns the session's retriever. Unknown ids are rejected rather than
// silently given an empty session: a missing entry is caller misuse.
func (reg *SessionRegistry) Get(sessionID string) (*SessionRetriever, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	retriever, ok := reg.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session",
			fmt.Errorf("session %s", sessionID))
	}
	return retriever, nil
}

// Destroy removes the session entry and tears down its indexes. The entry
// is unlinked before teardown, so no new call can reach the retriever while
// Destroy waits for in-flight ones.
func (reg *SessionRegistry) Destroy(sessionID string) error {
	reg.mu.Lock()
	retriever, ok := reg.sessions[sessionID]
	if ok {
		delete(reg.sessions, sessionID)
	}
	reg.mu.Unlock()

	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "destroy session",
			fmt.Errorf("session %s", sessionID))
	}
	retriever.Destroy()
	return nil
}

func (reg *SessionRegistry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}
