package bus

import (
	"fmt"
	"time"
)

// ErrNotConnected occurs when the session has no usable connection to the broker.
type ErrNotConnected struct {
	State State
}

func (e ErrNotConnected) Error() string {
	return fmt.Sprintf("Session is not ready to send, current state is %q.", e.State)
}

// ErrTransport occurs when the broker is unreachable or the connection breaks.
type ErrTransport struct {
	Original error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("Message bus transport failed. Error: %q", e.Original)
}

// ErrTimeout occurs when a synchronous call doesn't get a reply in time.
type ErrTimeout struct {
	Timeout time.Duration
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("No reply received within %s.", e.Timeout)
}

// ErrMessageTooLarge occurs when an encoded message would exceed the size the broker accepts.
type ErrMessageTooLarge struct {
	Size  int
	Limit int
}

func (e ErrMessageTooLarge) Error() string {
	return fmt.Sprintf("Message of %d bytes exceeds the limit of %d bytes.", e.Size, e.Limit)
}

// ErrRejected occurs when the broker answers a request with a failure.
type ErrRejected struct {
	Type   MessageType
	Reason string
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("Broker rejected %s message: %s", e.Type, e.Reason)
}
