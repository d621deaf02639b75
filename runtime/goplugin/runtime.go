package goplugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	plugin "github.com/hashicorp/go-plugin"
	"go.uber.org/zap"

	"github.com/serverless/function-gateway/function"
)

// Type of runtime.
const Type = function.RuntimeType("goplugin")

// Runtime executes functions built as go-plugin executables. Each artifact is started
// once and kept running for later invocations.
type Runtime struct {
	log    *zap.Logger
	logger hclog.Logger

	mu      sync.Mutex
	plugins map[string]*loaded
}

type loaded struct {
	once   sync.Once
	client *plugin.Client
	fn     Function
	err    error
}

// New creates a go-plugin runtime. Plugin output is written to log.
func New(log *zap.Logger) *Runtime {
	log = log.Named("goplugin")
	return &Runtime{
		log: log,
		logger: hclog.New(&hclog.LoggerOptions{
			Name:   "goplugin",
			Level:  hclog.Info,
			Output: zap.NewStdLog(log).Writer(),
		}),
		plugins: map[string]*loaded{},
	}
}

// Execute starts the plugin at location if needed and calls its Start method.
func (r *Runtime) Execute(ctx context.Context, location string, req *function.Request) (*function.Response, error) {
	fn, err := r.load(location)
	if err != nil {
		return nil, &function.ErrArtifactLoad{Location: location, Original: err}
	}

	type result struct {
		resp *function.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := fn.Start(req)
		done <- result{resp, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &function.ErrFunctionError{Original: res.err}
		}
		return res.resp, nil
	case <-ctx.Done():
		return nil, &function.ErrFunctionError{Original: ctx.Err()}
	}
}

// load returns the running plugin for location. Distinct locations load concurrently.
func (r *Runtime) load(location string) (Function, error) {
	r.mu.Lock()
	entry, ok := r.plugins[location]
	if ok && entry.client != nil && entry.client.Exited() {
		ok = false
	}
	if !ok {
		entry = &loaded{}
		r.plugins[location] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.client, entry.fn, entry.err = r.start(location)
	})

	if entry.err != nil {
		r.mu.Lock()
		if r.plugins[location] == entry {
			delete(r.plugins, location)
		}
		r.mu.Unlock()
		return nil, entry.err
	}
	return entry.fn, nil
}

func (r *Runtime) start(location string) (*plugin.Client, Function, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory", location)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]plugin.Plugin{pluginName: &FunctionRPCPlugin{}},
		Cmd:             exec.Command(location),
		Logger:          r.logger.Named(location),
		Managed:         true,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, err
	}

	raw, err := rpcClient.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return nil, nil, err
	}

	fn, ok := raw.(Function)
	if !ok {
		client.Kill()
		return nil, nil, errors.New("plugin doesn't implement a function")
	}

	r.log.Info("Function plugin started.", zap.String("location", location))
	return client, fn, nil
}

// Close kills all started plugins.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for location, entry := range r.plugins {
		if entry.client != nil {
			entry.client.Kill()
		}
		delete(r.plugins, location)
	}
}
