package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handle is the cancellation state of a single session
type Handle struct {
	id        string
	startedAt time.Time

	running atomic.Bool
	done    chan struct{}
	once    sync.Once

	mu  sync.RWMutex
	err error
}

// New creates a running handle with a fresh session ID
func New() *Handle {
	h := &Handle{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	h.running.Store(true)
	return h
}

// ID returns the session identifier
func (h *Handle) ID() string {
	return h.id
}

// StartedAt returns when the handle was created
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Running reports whether the session should keep pulling audio
func (h *Handle) Running() bool {
	return h.running.Load()
}

// Done is closed once the handle stops or fails
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop flips the handle to stopped. It returns true only for the call that
// performed the transition.
func (h *Handle) Stop() bool {
	return h.finish(nil)
}

// Fail stops the handle and records err as the terminal error. The first
// terminal error wins.
func (h *Handle) Fail(err error) bool {
	return h.finish(err)
}

// Err returns the error recorded by Fail, if any
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *Handle) finish(err error) bool {
	flipped := false
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		h.running.Store(false)
		close(h.done)
		flipped = true
	})
	return flipped
}
