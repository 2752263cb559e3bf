package chat

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds the running poller per live chat (thread-safe). Each
// session has at most one poller; sessions never share poller state.
type Registry struct {
	mu      sync.RWMutex
	pollers map[string]*Poller // keyed by live chat id
	logger  *zap.Logger
}

// NewRegistry creates an empty poller registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{pollers: make(map[string]*Poller), logger: logger}
}

// Start returns the running poller for liveChatID, creating and starting one
// via build if none is running.
func (reg *Registry) Start(liveChatID string, build func() *Poller) *Poller {
	reg.mu.Lock()
	if p := reg.pollers[liveChatID]; p != nil {
		reg.mu.Unlock()
		return p
	}
	p := build()
	p.onStop = func() { reg.remove(liveChatID) }
	reg.pollers[liveChatID] = p
	reg.mu.Unlock()

	p.Start()
	return p
}

// Get returns the running poller for liveChatID, or nil.
func (reg *Registry) Get(liveChatID string) *Poller {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.pollers[liveChatID]
}

// GetBySession returns the running poller for a session, or nil.
func (reg *Registry) GetBySession(sessionID uuid.UUID) *Poller {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, p := range reg.pollers {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

// Stop stops the poller for liveChatID and removes it from the registry.
func (reg *Registry) Stop(liveChatID string) {
	reg.mu.Lock()
	p := reg.pollers[liveChatID]
	delete(reg.pollers, liveChatID)
	reg.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// StopAll stops every running poller (used at server shutdown).
func (reg *Registry) StopAll() {
	reg.mu.Lock()
	pollers := make([]*Poller, 0, len(reg.pollers))
	for key, p := range reg.pollers {
		pollers = append(pollers, p)
		delete(reg.pollers, key)
	}
	reg.mu.Unlock()
	for _, p := range pollers {
		p.Stop()
	}
}

func (reg *Registry) remove(liveChatID string) {
	reg.mu.Lock()
	delete(reg.pollers, liveChatID)
	reg.mu.Unlock()
}
