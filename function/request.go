package function

import (
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap/zapcore"

	istrings "github.com/serverless/function-gateway/internal/strings"
)

// TriggerType tells what kind of event caused an invocation.
type TriggerType string

// TriggerHTTP is the only trigger type currently supported.
const TriggerHTTP = TriggerType("HTTP")

// Request is the invocation request sent from the gateway to a worker.
type Request struct {
	FunctionID    string          `json:"functionId"`
	FunctionName  string          `json:"functionName"`
	UserID        string          `json:"userId"`
	Runtime       RuntimeType     `json:"runtime"`
	BaseDirectory string          `json:"baseDirectory"`
	EntryFile     string          `json:"entryFile"`
	TriggerType   TriggerType     `json:"triggerType"`
	HTTP          *HTTPParameters `json:"http"`
}

// HTTPParameters carries the inbound HTTP request the invocation was triggered by.
type HTTPParameters struct {
	SourceIP           string            `json:"sourceIp"`
	SourcePort         int               `json:"sourcePort"`
	Ssl                bool              `json:"ssl"`
	FullURL            string            `json:"fullUrl"`
	RawURL             string            `json:"rawUrl"`
	RawURLWithoutQuery string            `json:"rawUrlWithoutQuery"`
	Method             string            `json:"method"`
	Querystring        map[string]string `json:"querystring"`
	Headers            map[string]string `json:"headers"`
	ContentLength      int64             `json:"contentLength"`
	Data               []byte            `json:"data"`
}

// NewRequest creates an HTTP-triggered invocation request for the definition.
func NewRequest(def *Definition, params *HTTPParameters) *Request {
	return &Request{
		FunctionID:    uuid.NewV4().String(),
		FunctionName:  def.FunctionName,
		UserID:        def.UserID,
		Runtime:       def.Runtime,
		BaseDirectory: def.BaseDirectory,
		EntryFile:     def.EntryFile,
		TriggerType:   TriggerHTTP,
		HTTP:          params,
	}
}

// ArtifactLocation returns where the function artifact lives: the base directory,
// always terminated by a separator, followed by the entry file.
func (r *Request) ArtifactLocation() string {
	if r.BaseDirectory == "" {
		return r.EntryFile
	}
	return istrings.EnsureSuffix(r.BaseDirectory, "/") + r.EntryFile
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface.
func (r Request) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("functionId", r.FunctionID)
	enc.AddString("userId", r.UserID)
	enc.AddString("functionName", r.FunctionName)
	enc.AddString("runtime", string(r.Runtime))
	enc.AddString("triggerType", string(r.TriggerType))
	if r.HTTP != nil {
		enc.AddString("method", r.HTTP.Method)
		enc.AddString("path", r.HTTP.RawURLWithoutQuery)
		enc.AddInt64("contentLength", r.HTTP.ContentLength)
	}
	return nil
}
