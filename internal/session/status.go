package session

import (
	"sync"

	"github.com/dshills/lintbridge/internal/protocol"
)

// statusMap tracks the per-document health the analysis process reports
// through lint/status notifications. Bookkeeping only; the host renders it.
type statusMap struct {
	mu     sync.RWMutex
	states map[protocol.DocumentURI]protocol.DocumentStatus
}

func newStatusMap() *statusMap {
	return &statusMap{states: make(map[protocol.DocumentURI]protocol.DocumentStatus)}
}

func (s *statusMap) set(uri protocol.DocumentURI, state protocol.DocumentStatus) {
	s.mu.Lock()
	s.states[uri] = state
	s.mu.Unlock()
}

func (s *statusMap) get(uri protocol.DocumentURI) (protocol.DocumentStatus, bool) {
	s.mu.RLock()
	state, ok := s.states[uri]
	s.mu.RUnlock()
	return state, ok
}

func (s *statusMap) clear(uri protocol.DocumentURI) {
	s.mu.Lock()
	delete(s.states, uri)
	s.mu.Unlock()
}

func (s *statusMap) reset() {
	s.mu.Lock()
	s.states = make(map[protocol.DocumentURI]protocol.DocumentStatus)
	s.mu.Unlock()
}
