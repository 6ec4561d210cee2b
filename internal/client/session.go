package client

import (
	"sync"

	"github.com/nurpe/logistics-bills/internal/model"
)

// Session holds the caller's credential. It is populated once at login and
// cleared as a whole on logout or when the service answers 401.
type Session struct {
	mu        sync.RWMutex
	token     string
	principal model.Principal
}

func NewSession(token string, principal model.Principal) *Session {
	return &Session{token: token, principal: principal}
}

func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Session) Principal() (model.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal, s.token != ""
}

func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.principal = model.Principal{}
}
