package main

import (
	"net/http"
	"strings"

	"github.com/serverless/function-gateway/function"
	"github.com/serverless/function-gateway/runtime/goplugin"
)

// Hello greets the caller with the method and path it was invoked with.
type Hello struct{}

// Start is called for every invocation.
func (h *Hello) Start(req *function.Request) (*function.Response, error) {
	resp, err := function.NewResponse(http.StatusOK)
	if err != nil {
		return nil, err
	}

	method, path := "", ""
	if req.HTTP != nil {
		method = req.HTTP.Method
		path = req.HTTP.RawURLWithoutQuery
	}

	resp.ContentType = "text/plain"
	resp.Headers = map[string]string{"Hello": "World"}
	resp.SetData([]byte("Hello!  " + strings.ToUpper(method) + " " + path))
	return resp, nil
}

func main() {
	goplugin.Serve(&Hello{})
}
