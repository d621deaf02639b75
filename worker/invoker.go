package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/function"
)

// Invoker executes function artifacts through the registered runtimes.
type Invoker struct {
	log *zap.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(log *zap.Logger) *Invoker {
	return &Invoker{log: log.Named("invoker")}
}

// Invoke runs the function named by the request and returns its response stamped with
// timing. Failures are logged and returned as *function.ErrArtifactLoad or
// *function.ErrFunctionError, in which case there is no response.
func (i *Invoker) Invoke(ctx context.Context, req *function.Request) (*function.Response, error) {
	location := req.ArtifactLocation()

	runtime, ok := function.LookupRuntime(req.Runtime)
	if !ok {
		err := &function.ErrArtifactLoad{Location: location, Original: fmt.Errorf("runtime %q is not registered", req.Runtime)}
		i.failed(req, err)
		return nil, err
	}

	start := time.Now()
	resp, err := runtime.Execute(ctx, location, req)
	end := time.Now()
	metricInvocationDuration.Observe(end.Sub(start).Seconds())

	if err == nil && resp == nil {
		err = &function.ErrFunctionError{Original: errors.New("function returned no response")}
	}
	if err == nil {
		if resp.HTTPStatus == 0 {
			resp.HTTPStatus = http.StatusOK
		}
		resp.SetData(resp.Data)
		if verr := resp.Validate(); verr != nil {
			err = &function.ErrFunctionError{Original: verr}
		}
	}
	if err != nil {
		err = classify(err)
		i.failed(req, err)
		return nil, err
	}

	resp.Stamp(start, end)
	metricInvocations.WithLabelValues(resultOK).Inc()
	i.log.Debug("Function invoked.", zap.Object("request", req), zap.Object("response", resp))
	return resp, nil
}

func (i *Invoker) failed(req *function.Request, err error) {
	metricInvocations.WithLabelValues(failureKind(err)).Inc()
	i.log.Error("Function invocation failed.", zap.Object("request", req), zap.String("location", req.ArtifactLocation()), zap.Error(err))
}

// classify keeps typed invocation errors and wraps anything else as a function error.
func classify(err error) error {
	switch err.(type) {
	case *function.ErrArtifactLoad, *function.ErrFunctionError:
		return err
	default:
		return &function.ErrFunctionError{Original: err}
	}
}

func failureKind(err error) string {
	if _, ok := err.(*function.ErrArtifactLoad); ok {
		return resultArtifactLoad
	}
	return resultFunctionError
}
