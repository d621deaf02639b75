package router

import (
	"fmt"
)

// ErrMalformedPath occurs when the request path names neither a reserved resource nor a user and function.
type ErrMalformedPath struct {
	Path string
}

func (e ErrMalformedPath) Error() string {
	return "URL must be of the form /[userguid]/[functionname]/"
}

// ErrResponseMalformed occurs when the payload returned by a worker is not a valid function response.
type ErrResponseMalformed struct {
	Original error
}

func (e ErrResponseMalformed) Error() string {
	return fmt.Sprintf("Function response returned by worker is malformed. Error: %q", e.Original)
}
