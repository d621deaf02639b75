package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownGuard(t *testing.T) {
	guard := NewShutdownGuard()
	stopped := false

	guard.Go(func(ctx context.Context) {
		<-ctx.Done()
		stopped = true
	})

	assert.False(t, guard.IsShuttingDown())
	guard.ShutdownAndWait()

	assert.True(t, stopped)
	assert.True(t, guard.IsShuttingDown())
	assert.Error(t, guard.Context().Err())
}

func TestInitiateShutdownTwice(t *testing.T) {
	guard := NewShutdownGuard()

	guard.InitiateShutdown()
	guard.InitiateShutdown()

	assert.True(t, guard.IsShuttingDown())
}
