package resource

import (
	"context"
	"sync"

	"github.com/ppoulin/vitrine/internal/services/kiosk/origin"
)

// SessionState reflects the admin session as last observed.
type SessionState string

const (
	SessionUnknown         SessionState = "unknown"
	SessionAuthenticated   SessionState = "authenticated"
	SessionUnauthenticated SessionState = "unauthenticated"
)

// maxSessionAttempts caps consecutive failed verification probes. Once
// reached the hook settles on unauthenticated until the next Login, so an
// unreachable origin cannot trigger endless retries.
const maxSessionAttempts = 3

// SessionHook tracks the admin session against the origin.
type SessionHook struct {
	client *origin.Client

	mu       sync.Mutex
	state    SessionState
	subject  string
	attempts int
	errMsg   string
}

// NewSessionHook creates a session hook in the unknown state.
func NewSessionHook(client *origin.Client) *SessionHook {
	return &SessionHook{client: client, state: SessionUnknown}
}

// SessionSnapshot is a point-in-time copy of session state.
type SessionSnapshot struct {
	State   SessionState
	Subject string
	Err     string
}

// Snapshot returns the current session state.
func (s *SessionHook) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{State: s.state, Subject: s.subject, Err: s.errMsg}
}

// Check verifies the stored token against the origin. After the attempt
// cap is exhausted the probe is skipped and the settled state returned.
func (s *SessionHook) Check(ctx context.Context) SessionState {
	s.mu.Lock()
	if s.state == SessionUnauthenticated && s.attempts >= maxSessionAttempts {
		defer s.mu.Unlock()
		return s.state
	}
	s.mu.Unlock()

	subject, err := s.client.CheckSession(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.attempts++
		s.state = SessionUnauthenticated
		s.subject = ""
		s.errMsg = err.Error()
		return s.state
	}
	s.attempts = 0
	s.state = SessionAuthenticated
	s.subject = subject
	s.errMsg = ""
	return s.state
}

// Login exchanges credentials for a session token and resets the attempt
// counter so verification probes resume.
func (s *SessionHook) Login(ctx context.Context, username, password string) error {
	_, err := s.client.Login(ctx, username, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = SessionUnauthenticated
		s.subject = ""
		s.errMsg = err.Error()
		return err
	}
	s.attempts = 0
	s.state = SessionAuthenticated
	s.subject = username
	s.errMsg = ""
	return nil
}

// Logout discards the stored token.
func (s *SessionHook) Logout() {
	s.client.SetToken("")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionUnauthenticated
	s.subject = ""
	s.attempts = 0
	s.errMsg = ""
}
