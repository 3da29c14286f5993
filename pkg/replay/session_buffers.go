package replay

import (
	"sync"

	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

// SessionBuffers lazily creates and owns one Buffer per session.
type SessionBuffers struct {
	mu         sync.Mutex
	buffers    map[string]*Buffer
	bufferSize int
}

// NewSessionBuffers creates a manager whose buffers each hold bufferSize
// events.
func NewSessionBuffers(bufferSize int) *SessionBuffers {
	return &SessionBuffers{
		buffers:    make(map[string]*Buffer),
		bufferSize: bufferSize,
	}
}

func (s *SessionBuffers) bufferFor(sessionID string) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[sessionID]
	if !ok {
		b = NewBuffer(s.bufferSize)
		s.buffers[sessionID] = b
	}
	return b
}

// Add records ev in the session's buffer, creating the buffer if needed.
func (s *SessionBuffers) Add(sessionID string, ev *event.Event) {
	s.bufferFor(sessionID).Add(ev)
}

// EventsAfter returns the buffered events after eventID for a session.
// An unknown session returns an empty slice rather than creating a buffer.
func (s *SessionBuffers) EventsAfter(sessionID, eventID string) []*event.Event {
	s.mu.Lock()
	b, ok := s.buffers[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return b.EventsAfter(eventID)
}

// LatestEventID returns the most recent event ID buffered for a session.
func (s *SessionBuffers) LatestEventID(sessionID string) string {
	s.mu.Lock()
	b, ok := s.buffers[sessionID]
	s.mu.Unlock()
	if !ok {
		return ""
	}
	return b.LatestEventID()
}

// ClearSession removes a session's buffer entirely.
func (s *SessionBuffers) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, sessionID)
}
