package mixer

import (
	"sync"

	"stemset/logger"
)

// Session tracks every live Element in the process so that teardown can
// reach audio that outlived its owning registry, e.g. when a client drops
// a WebSocket mid-load and the loader finishes afterwards.
type Session struct {
	mu       sync.Mutex
	elements map[Element]struct{}
}

var (
	sessionOnce    sync.Once
	defaultSession *Session
)

// DefaultSession returns the process-wide session registry.
func DefaultSession() *Session {
	sessionOnce.Do(func() {
		defaultSession = &Session{elements: make(map[Element]struct{})}
	})
	return defaultSession
}

func (s *Session) register(el Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[el] = struct{}{}
}

func (s *Session) deregister(el Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, el)
}

// Live reports how many elements are currently registered.
func (s *Session) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elements)
}

// TeardownAll stops and closes every registered element. Safe to call any
// number of times, including concurrently with registration.
func (s *Session) TeardownAll() {
	s.mu.Lock()
	els := make([]Element, 0, len(s.elements))
	for el := range s.elements {
		els = append(els, el)
	}
	s.elements = make(map[Element]struct{})
	s.mu.Unlock()

	for _, el := range els {
		el.Stop()
		el.Close()
	}
	if len(els) > 0 {
		logger.Info("audio session teardown", logger.Int("elements", len(els)))
	}
}
