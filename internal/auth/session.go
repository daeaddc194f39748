package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLoggedOut      = errors.New("session logged out")
	ErrIdleTimeout    = errors.New("session expired after inactivity")
	ErrSessionInvalid = errors.New("session no longer valid")
)

// Session is the signed-in reader, passed explicitly to everything that
// acts on their behalf. Its context is cancelled on logout, on an
// invalid-session response from the server, or after idle time without
// Touch.
type Session struct {
	UserID   string
	Username string
	Role     string
	Token    string

	idle   time.Duration
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	timer *time.Timer
}

// NewSession starts the inactivity timer. idle <= 0 disables it.
func NewSession(parent context.Context, userID, username, role, token string, idle time.Duration) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	s := &Session{
		UserID:   userID,
		Username: username,
		Role:     role,
		Token:    token,
		idle:     idle,
		ctx:      ctx,
		cancel:   cancel,
	}
	if idle > 0 {
		s.timer = time.AfterFunc(idle, func() { s.Expire(ErrIdleTimeout) })
	}
	return s
}

func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Err is nil while the session is live, otherwise the reason it ended.
func (s *Session) Err() error {
	if s.ctx.Err() == nil {
		return nil
	}
	return context.Cause(s.ctx)
}

func (s *Session) Active() bool { return s.ctx.Err() == nil }

// Touch records activity and pushes the idle deadline out.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || !s.Active() {
		return
	}
	s.timer.Reset(s.idle)
}

// Expire ends the session with cause. Only the first cause is kept.
func (s *Session) Expire(cause error) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.cancel(cause)
}

func (s *Session) Logout() { s.Expire(ErrLoggedOut) }
