package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/function"
	"github.com/serverless/function-gateway/mock"
)

func TestInvoke(t *testing.T) {
	t.Run("stamps response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-stamp", runtime)

		resp, _ := function.NewResponse(200)
		resp.SetData([]byte("hello"))
		runtime.EXPECT().Execute(gomock.Any(), "/srv/functions/echo.so", gomock.Any()).Return(resp, nil)

		output, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-stamp", "/srv/functions"))

		assert.Nil(t, err)
		assert.Equal(t, []byte("hello"), output.Data)
		assert.False(t, output.StartTime.IsZero())
		assert.False(t, output.EndTime.Before(output.StartTime))
		assert.True(t, output.RuntimeMs >= 0)
	})

	t.Run("base directory without separator", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-location", runtime)

		resp, _ := function.NewResponse(204)
		runtime.EXPECT().Execute(gomock.Any(), "/srv/functions/echo.so", gomock.Any()).Return(resp, nil)

		_, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-location", "/srv/functions/"))

		assert.Nil(t, err)
	})

	t.Run("unknown runtime", func(t *testing.T) {
		output, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-missing", "/srv"))

		assert.Nil(t, output)
		assert.IsType(t, &function.ErrArtifactLoad{}, err)
		assert.Equal(t, "/srv/echo.so", err.(*function.ErrArtifactLoad).Location)
	})

	t.Run("artifact load failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-load", runtime)

		loadErr := &function.ErrArtifactLoad{Location: "/srv/echo.so", Original: errors.New("no such file")}
		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, loadErr)

		output, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-load", "/srv"))

		assert.Nil(t, output)
		assert.Equal(t, loadErr, err)
	})

	t.Run("function failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-fail", runtime)

		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		output, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-fail", "/srv"))

		assert.Nil(t, output)
		assert.Equal(t, &function.ErrFunctionError{Original: errors.New("boom")}, err)
	})

	t.Run("no response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-nil", runtime)

		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

		_, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-nil", "/srv"))

		assert.IsType(t, &function.ErrFunctionError{}, err)
	})

	t.Run("response without status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-default-status", runtime)

		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(&function.Response{Data: []byte("hello")}, nil)

		output, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-default-status", "/srv"))

		assert.Nil(t, err)
		assert.Equal(t, 200, output.HTTPStatus)
		assert.Equal(t, int64(5), output.ContentLength)
		assert.Equal(t, []byte("hello"), output.Data)
	})

	t.Run("invalid status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-status", runtime)

		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(&function.Response{HTTPStatus: 42}, nil)

		_, err := NewInvoker(zap.NewNop()).Invoke(context.Background(), testRequest("test-status", "/srv"))

		assert.Equal(t, &function.ErrFunctionError{Original: &function.ErrInvalidStatus{Status: 42}}, err)
	})
}

func TestHandleSync(t *testing.T) {
	t.Run("encodes response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-handler", runtime)

		req := testRequest("test-handler", "/srv")
		resp, _ := function.NewResponse(200)
		resp.ContentType = "text/plain"
		resp.SetData([]byte("hello"))
		runtime.EXPECT().Execute(gomock.Any(), "/srv/echo.so", gomock.Any()).Return(resp, nil)

		payload, _ := json.Marshal(req)
		handler := &Handler{Invoker: NewInvoker(zap.NewNop()), Log: zap.NewNop()}

		output := handler.HandleSync(context.Background(), &bus.Message{Type: bus.TypeSync, Data: payload})

		decoded := &function.Response{}
		assert.Nil(t, json.Unmarshal(output, decoded))
		assert.Equal(t, 200, decoded.HTTPStatus)
		assert.Equal(t, "text/plain", decoded.ContentType)
		assert.Equal(t, []byte("hello"), decoded.Data)
	})

	t.Run("failed invocation gives no payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-handler-fail", runtime)
		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		payload, _ := json.Marshal(testRequest("test-handler-fail", "/srv"))
		handler := &Handler{Invoker: NewInvoker(zap.NewNop()), Log: zap.NewNop()}

		assert.Empty(t, handler.HandleSync(context.Background(), &bus.Message{Type: bus.TypeSync, Data: payload}))
	})

	t.Run("malformed request gives no payload", func(t *testing.T) {
		handler := &Handler{Invoker: NewInvoker(zap.NewNop()), Log: zap.NewNop()}

		assert.Empty(t, handler.HandleSync(context.Background(), &bus.Message{Type: bus.TypeSync, Data: []byte("{")}))
	})

	t.Run("panicking runtime gives no payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		runtime := mock.NewMockRuntime(ctrl)
		function.RegisterRuntime("test-handler-panic", runtime)
		runtime.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, location string, req *function.Request) (*function.Response, error) {
				panic("unexpected")
			})

		payload, _ := json.Marshal(testRequest("test-handler-panic", "/srv"))
		handler := &Handler{Invoker: NewInvoker(zap.NewNop()), Log: zap.NewNop()}

		assert.Empty(t, handler.HandleSync(context.Background(), &bus.Message{Type: bus.TypeSync, Data: payload}))
	})
}

func testRequest(runtime function.RuntimeType, baseDirectory string) *function.Request {
	return &function.Request{
		FunctionID:    "f-1",
		FunctionName:  "echo",
		UserID:        "u1",
		Runtime:       runtime,
		BaseDirectory: baseDirectory,
		EntryFile:     "echo.so",
		TriggerType:   function.TriggerHTTP,
		HTTP: &function.HTTPParameters{
			Method:      "get",
			Querystring: map[string]string{},
			Headers:     map[string]string{},
			Data:        []byte{},
		},
	}
}
