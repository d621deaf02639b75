package function

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap/zapcore"
)

// Response is what a function returns for an invocation.
type Response struct {
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	RuntimeMs     float64           `json:"runtimeMs"`
	HTTPStatus    int               `json:"httpStatus"`
	ContentType   string            `json:"contentType"`
	Headers       map[string]string `json:"headers"`
	ContentLength int64             `json:"contentLength"`
	Data          []byte            `json:"data"`
}

// NewResponse creates a response with the HTTP status. It fails for a status outside of 100-599.
func NewResponse(status int) (*Response, error) {
	resp := &Response{}
	if err := resp.SetStatus(status); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetStatus sets the HTTP status returned to the caller.
func (r *Response) SetStatus(status int) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	r.HTTPStatus = status
	return nil
}

// SetData sets the body and derives the content length from it.
func (r *Response) SetData(data []byte) {
	r.Data = data
	if data != nil {
		r.ContentLength = int64(len(data))
	}
}

// Stamp records when the invocation started and ended.
func (r *Response) Stamp(start, end time.Time) {
	r.StartTime = start
	r.EndTime = end
	r.RuntimeMs = float64(end.Sub(start)) / float64(time.Millisecond)
}

// Validate checks invariants of a response built outside of NewResponse.
func (r *Response) Validate() error {
	return validateStatus(r.HTTPStatus)
}

// UnmarshalJSON decodes a response, defaulting the status to 200 and rejecting invalid ones.
func (r *Response) UnmarshalJSON(data []byte) error {
	// This line is needed to avoid stack overflow because of recursive UnmarshalJSON call
	type responseJSON Response

	raw := responseJSON{HTTPStatus: http.StatusOK}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := validateStatus(raw.HTTPStatus); err != nil {
		return err
	}

	*r = Response(raw)
	r.SetData(raw.Data)
	return nil
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface.
func (r Response) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("httpStatus", r.HTTPStatus)
	enc.AddString("contentType", r.ContentType)
	enc.AddInt64("contentLength", r.ContentLength)
	enc.AddFloat64("runtimeMs", r.RuntimeMs)
	return nil
}

func validateStatus(status int) error {
	if status < 100 || status > 599 {
		return &ErrInvalidStatus{Status: status}
	}
	return nil
}
