package function

import (
	"context"
	"sync"
)

// RuntimeType identifies the environment a function is executed in.
type RuntimeType string

// DefaultRuntime is used for definitions that don't name a runtime.
const DefaultRuntime = RuntimeType("goplugin")

// Runtime loads a function artifact and executes it against a request.
type Runtime interface {
	Execute(ctx context.Context, location string, req *Request) (*Response, error)
}

var (
	runtimesMu sync.RWMutex
	runtimes   = make(map[RuntimeType]Runtime)
)

// RegisterRuntime registers runtime by its type. Registering the same type again replaces the previous runtime.
func RegisterRuntime(runtimeType RuntimeType, runtime Runtime) {
	runtimesMu.Lock()
	defer runtimesMu.Unlock()
	runtimes[runtimeType] = runtime
}

// LookupRuntime returns runtime registered for the type. Empty type resolves to DefaultRuntime.
func LookupRuntime(runtimeType RuntimeType) (Runtime, bool) {
	if runtimeType == "" {
		runtimeType = DefaultRuntime
	}

	runtimesMu.RLock()
	defer runtimesMu.RUnlock()
	runtime, ok := runtimes[runtimeType]
	return runtime, ok
}
