package transfer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/mediarelay/internal/entity"
)

// Session is the runtime state of one transfer. It lives as long as the
// request that created it.
type Session struct {
	ID        string
	StartedAt time.Time

	mu        sync.Mutex
	state     entity.State
	err       error
	committed bool

	bytes atomic.Int64
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		state:     entity.StateIdle,
	}
}

func (s *Session) State() entity.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Err is the cause of a Failed or Aborted session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Committed reports whether response headers have been sent.
func (s *Session) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.committed
}

func (s *Session) BytesTransferred() int64 {
	return s.bytes.Load()
}

func (s *Session) setState(state entity.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.state = state
}

func (s *Session) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = true
}

// finish moves the session to a terminal state once; later calls are ignored.
func (s *Session) finish(state entity.State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return false
	}
	s.state = state
	s.err = err

	return true
}
