package http_test

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serverless/function-gateway/function"
	httpruntime "github.com/serverless/function-gateway/runtime/http"
)

func TestExecute(t *testing.T) {
	var contentType string
	var received function.Request
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		payload, _ := ioutil.ReadAll(r.Body)
		defer r.Body.Close()
		json.Unmarshal(payload, &received)
		w.Write([]byte(`{"httpStatus":202,"contentType":"text/plain","data":"aGVsbG8="}`))
	}))
	defer endpoint.Close()
	runtime := &httpruntime.HTTP{Client: endpoint.Client()}

	resp, err := runtime.Execute(context.Background(), endpoint.URL, &function.Request{FunctionName: "echo"})

	assert.Nil(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "echo", received.FunctionName)
	assert.Equal(t, 202, resp.HTTPStatus)
	assert.Equal(t, []byte("hello"), resp.Data)
	assert.Equal(t, int64(5), resp.ContentLength)
}

func TestExecute_DefaultStatus(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer endpoint.Close()
	runtime := &httpruntime.HTTP{Client: endpoint.Client()}

	resp, err := runtime.Execute(context.Background(), endpoint.URL, &function.Request{})

	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.HTTPStatus)
}

func TestExecute_InternalError(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer endpoint.Close()
	runtime := &httpruntime.HTTP{Client: endpoint.Client()}

	_, err := runtime.Execute(context.Background(), endpoint.URL, &function.Request{})

	assert.EqualError(t, err, `Function call failed because of runtime error. Error: "HTTP status code: 500"`)
}

func TestExecute_NotFound(t *testing.T) {
	endpoint := httptest.NewServer(http.NotFoundHandler())
	defer endpoint.Close()
	runtime := &httpruntime.HTTP{Client: endpoint.Client()}

	_, err := runtime.Execute(context.Background(), endpoint.URL, &function.Request{})

	assert.IsType(t, &function.ErrArtifactLoad{}, err)
}

func TestExecute_InvalidStatus(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"httpStatus":700}`))
	}))
	defer endpoint.Close()
	runtime := &httpruntime.HTTP{Client: endpoint.Client()}

	_, err := runtime.Execute(context.Background(), endpoint.URL, &function.Request{})

	assert.Equal(t, &function.ErrFunctionError{Original: &function.ErrInvalidStatus{Status: 700}}, err)
}

func TestExecute_InvalidLocation(t *testing.T) {
	runtime := &httpruntime.HTTP{Client: http.DefaultClient}

	_, err := runtime.Execute(context.Background(), "functions/echo", &function.Request{})

	assert.IsType(t, &function.ErrArtifactLoad{}, err)
}

func TestRegistered(t *testing.T) {
	runtime, ok := function.LookupRuntime(httpruntime.Type)

	assert.True(t, ok)
	assert.IsType(t, &httpruntime.HTTP{}, runtime)
}
