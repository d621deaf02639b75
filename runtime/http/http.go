package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	validator "gopkg.in/go-playground/validator.v9"

	"github.com/serverless/function-gateway/function"
)

// Type of runtime.
const Type = function.RuntimeType("http")

func init() {
	function.RegisterRuntime(Type, &HTTP{Client: &http.Client{Timeout: 15 * time.Second}})
}

// HTTP runtime executes functions exposed as HTTP endpoints. The artifact location is the
// endpoint URL. The invocation request is POSTed as JSON and the endpoint answers with a
// JSON encoded function response.
type HTTP struct {
	Client *http.Client
}

type endpoint struct {
	URL string `validate:"required,url"`
}

// Execute calls the endpoint.
func (h *HTTP) Execute(ctx context.Context, location string, req *function.Request) (*function.Response, error) {
	if err := validator.New().Struct(endpoint{URL: location}); err != nil {
		return nil, &function.ErrArtifactLoad{Location: location, Original: fmt.Errorf("%q is not a valid URL", location)}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &function.ErrFunctionCallFailed{Original: err}
	}

	httpReq, err := http.NewRequest(http.MethodPost, location, bytes.NewReader(payload))
	if err != nil {
		return nil, &function.ErrArtifactLoad{Location: location, Original: err}
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return nil, &function.ErrFunctionCallFailed{Original: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &function.ErrArtifactLoad{Location: location, Original: fmt.Errorf("HTTP status code: %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &function.ErrFunctionError{Original: fmt.Errorf("HTTP status code: %d", resp.StatusCode)}
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &function.ErrFunctionCallFailed{Original: err}
	}

	output := &function.Response{}
	err = json.Unmarshal(body, output)
	if err != nil {
		return nil, &function.ErrFunctionError{Original: err}
	}
	return output, nil
}
