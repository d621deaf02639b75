package broker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serverless/function-gateway/internal/httpapi"
)

func TestAPIChannels(t *testing.T) {
	b := newTestBroker()
	api := NewAPI(b, http.NotFoundHandler())

	t.Run("create", func(t *testing.T) {
		resp := serveAPI(api, http.MethodPut, "/channels/jobs?kind=unicast")

		assert.Equal(t, http.StatusCreated, resp.Code)
		assert.Contains(t, b.Channels(), ChannelInfo{Name: "jobs", Kind: "unicast"})
	})

	t.Run("create existing", func(t *testing.T) {
		resp := serveAPI(api, http.MethodPut, "/channels/main?kind=broadcast")

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, `Channel "main" already exists.`, apiError(t, resp))
	})

	t.Run("create with invalid kind", func(t *testing.T) {
		resp := serveAPI(api, http.MethodPut, "/channels/news?kind=multicast")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, `Channel kind "multicast" is invalid, it must be "broadcast" or "unicast".`, apiError(t, resp))
		assert.Len(t, b.Channels(), 4)
	})

	t.Run("members", func(t *testing.T) {
		resp := serveAPI(api, http.MethodGet, "/channels/jobs")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"members":[],"subscribers":[]}`, resp.Body.String())
	})

	t.Run("destroy", func(t *testing.T) {
		resp := serveAPI(api, http.MethodDelete, "/channels/jobs")

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Len(t, b.Channels(), 3)
	})

	t.Run("unknown channel", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serveAPI(api, http.MethodDelete, "/channels/jobs").Code)
		assert.Equal(t, http.StatusNotFound, serveAPI(api, http.MethodGet, "/channels/jobs").Code)
	})
}

func TestParseChannelKind(t *testing.T) {
	kind, ok := ParseChannelKind("broadcast")
	assert.True(t, ok)
	assert.Equal(t, Broadcast, kind)

	kind, ok = ParseChannelKind("unicast")
	assert.True(t, ok)
	assert.Equal(t, Unicast, kind)

	_, ok = ParseChannelKind("Unicast")
	assert.False(t, ok)
}

func serveAPI(api http.Handler, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	api.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func apiError(t *testing.T, resp *httptest.ResponseRecorder) string {
	body := &httpapi.Response{}
	assert.Nil(t, json.Unmarshal(resp.Body.Bytes(), body))
	if len(body.Errors) != 1 {
		t.Fatalf("expected one error, got %v", body.Errors)
	}
	return body.Errors[0].Message
}
