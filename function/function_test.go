package function_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/serverless/function-gateway/function"
)

func TestNewResponse(t *testing.T) {
	for _, testCase := range newResponseTests {
		resp, err := function.NewResponse(testCase.status)

		if testCase.valid {
			assert.Nil(t, err)
			assert.Equal(t, testCase.status, resp.HTTPStatus)
		} else {
			assert.Nil(t, resp)
			assert.Equal(t, &function.ErrInvalidStatus{Status: testCase.status}, err)
		}
	}
}

func TestResponseSetData(t *testing.T) {
	resp, _ := function.NewResponse(200)

	resp.SetData([]byte("hello"))

	assert.Equal(t, int64(5), resp.ContentLength)
	assert.Equal(t, []byte("hello"), resp.Data)
}

func TestResponseStamp(t *testing.T) {
	resp, _ := function.NewResponse(200)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	resp.Stamp(start, start.Add(1500*time.Microsecond))

	assert.Equal(t, 1.5, resp.RuntimeMs)
	assert.True(t, resp.EndTime.After(resp.StartTime))
}

func TestResponseUnmarshalJSON(t *testing.T) {
	resp := &function.Response{}

	err := json.Unmarshal([]byte(`{"contentType":"text/plain","data":"aGVsbG8="}`), resp)

	assert.Nil(t, err)
	assert.Equal(t, 200, resp.HTTPStatus)
	assert.Equal(t, int64(5), resp.ContentLength)
	assert.Equal(t, "hello", string(resp.Data))
}

func TestResponseUnmarshalJSON_InvalidStatus(t *testing.T) {
	resp := &function.Response{}

	err := json.Unmarshal([]byte(`{"httpStatus":700}`), resp)

	assert.Equal(t, &function.ErrInvalidStatus{Status: 700}, err)
}

func TestRequestRoundTrip(t *testing.T) {
	for _, body := range [][]byte{{}, []byte("payload"), {0x00, 0xff, 0x10}} {
		req := function.NewRequest(&function.Definition{
			UserID:        "u1",
			FunctionName:  "echo",
			Runtime:       "goplugin",
			BaseDirectory: "/srv/functions",
			EntryFile:     "echo",
		}, &function.HTTPParameters{
			SourceIP:           "127.0.0.1",
			SourcePort:         52000,
			Ssl:                true,
			FullURL:            "https://example.com/u1/echo?foo=bar",
			RawURL:             "/u1/echo?foo=bar",
			RawURLWithoutQuery: "/u1/echo",
			Method:             "post",
			Querystring:        map[string]string{"foo": "bar"},
			Headers:            map[string]string{"X-Custom": "value", "content-type": "text/plain"},
			ContentLength:      int64(len(body)),
			Data:               body,
		})

		payload, err := json.Marshal(req)
		assert.Nil(t, err)

		decoded := &function.Request{}
		err = json.Unmarshal(payload, decoded)

		assert.Nil(t, err)
		assert.Equal(t, req, decoded)
		assert.Equal(t, body, decoded.HTTP.Data)
	}
}

func TestRequestArtifactLocation(t *testing.T) {
	for _, testCase := range artifactLocationTests {
		req := &function.Request{BaseDirectory: testCase.baseDirectory, EntryFile: testCase.entryFile}

		assert.Equal(t, testCase.location, req.ArtifactLocation())
	}
}

func TestDefinitionIs(t *testing.T) {
	def := &function.Definition{UserID: "User1", FunctionName: "Echo"}

	assert.True(t, def.Is("user1", "ECHO"))
	assert.False(t, def.Is("user2", "echo"))
	assert.False(t, def.Is("user1", "echo2"))
}

func TestTriggerAllowsMethod(t *testing.T) {
	trigger := &function.Trigger{Methods: []string{"GET", "post"}}

	assert.True(t, trigger.AllowsMethod("get"))
	assert.True(t, trigger.AllowsMethod("POST"))
	assert.False(t, trigger.AllowsMethod("DELETE"))
}

func TestLookupRuntime(t *testing.T) {
	runtime := &stubRuntime{}
	function.RegisterRuntime(function.DefaultRuntime, runtime)

	found, ok := function.LookupRuntime("")

	assert.True(t, ok)
	assert.Equal(t, runtime, found)

	_, ok = function.LookupRuntime("unknown")
	assert.False(t, ok)
}

type stubRuntime struct{}

func (s *stubRuntime) Execute(ctx context.Context, location string, req *function.Request) (*function.Response, error) {
	return function.NewResponse(200)
}

var newResponseTests = []struct {
	status int
	valid  bool
}{
	{42, false},
	{99, false},
	{100, true},
	{204, true},
	{599, true},
	{600, false},
	{700, false},
}

var artifactLocationTests = []struct {
	baseDirectory string
	entryFile     string
	location      string
}{
	{"/srv/functions", "echo", "/srv/functions/echo"},
	{"/srv/functions/", "echo", "/srv/functions/echo"},
	{"", "echo", "echo"},
	{"us-east-1", "hello", "us-east-1/hello"},
}
