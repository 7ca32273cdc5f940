package interview

import (
	"sync"
	"time"
)

// State tracks where a session is in its lifecycle.
type State string

const (
	StateCreated       State = "created"
	StateGreeting      State = "greeting"
	StateAwaitingInput State = "awaiting_input"
	StateGenerating    State = "generating"
	StateClosed        State = "closed"
)

// Session holds the live state for one user's ongoing interview.
// The transcript is append-only; only the most recent entries are
// forwarded to the model once the greeting has completed.
type Session struct {
	mu sync.Mutex

	UserID       string
	Email        string
	Prompt       string
	Messages     []Message
	HasGreeted   bool
	State        State
	LastActivity time.Time
}

// NewSession creates a session in the created state.
func NewSession(userID, email, prompt string) *Session {
	return &Session{
		UserID:       userID,
		Email:        email,
		Prompt:       prompt,
		State:        StateCreated,
		LastActivity: time.Now().UTC(),
	}
}

// AddMessage appends a transcript entry and resets the inactivity clock.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
	s.LastActivity = time.Now().UTC()
}

// Transcript returns a copy of the current transcript.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Message, len(s.Messages))
	copy(copied, s.Messages)
	return copied
}

// IsInactive reports whether the session has gone without activity for
// longer than the supplied budget.
func (s *Session) IsInactive(budget time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity) > budget
}

// MarkGreeted records completion of the opening interviewer turn.
func (s *Session) MarkGreeted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HasGreeted = true
}

// Greeted reports whether the opening turn has completed.
func (s *Session) Greeted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.HasGreeted
}

// SetState transitions the session. Closed is terminal.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateClosed {
		return
	}
	s.State = state
}

// CurrentState returns the session state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}
