package sync

import (
	"context"
	"sync"
)

// ShutdownGuard coordinates the shutdown of the components of a node: HTTP servers, the
// dispatch session loop and the broker. Components register with Add and call Done when
// they stopped.
type ShutdownGuard struct {
	sync.Mutex
	sync.WaitGroup
	ShuttingDown chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewShutdownGuard creates a new ShutdownGuard.
func NewShutdownGuard() *ShutdownGuard {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownGuard{
		ShuttingDown: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// InitiateShutdown signals to all components that they should begin shutting down.
func (s *ShutdownGuard) InitiateShutdown() {
	s.Lock()
	defer s.Unlock()

	select {
	case <-s.ShuttingDown:
		// already closed
	default:
		close(s.ShuttingDown)
		s.cancel()
	}
}

// IsShuttingDown returns true once shutdown was initiated.
func (s *ShutdownGuard) IsShuttingDown() bool {
	select {
	case <-s.ShuttingDown:
		return true
	default:
		return false
	}
}

// Context returns a context cancelled when shutdown is initiated.
func (s *ShutdownGuard) Context() context.Context {
	return s.ctx
}

// Go runs fn as a guarded component. fn should return once the context is cancelled.
func (s *ShutdownGuard) Go(fn func(ctx context.Context)) {
	s.Add(1)
	go func() {
		defer s.Done()
		fn(s.ctx)
	}()
}

// ShutdownAndWait initiates a shutdown, and waits for all components to finish.
func (s *ShutdownGuard) ShutdownAndWait() {
	s.InitiateShutdown()
	s.Wait()
}
