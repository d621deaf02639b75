package bus

import (
	"context"
)

// Transport opens connections to the broker.
type Transport interface {
	Dial(ctx context.Context, identity Identity) (Conn, error)
}

// Conn is a message oriented connection. Send may be called concurrently; Receive is
// called from a single goroutine.
type Conn interface {
	Send(msg *Message) error
	Receive() (*Message, error)
	Close() error
}

// State of a session.
type State int

const (
	// Disconnected means there is no connection to the broker.
	Disconnected State = iota
	// Connecting means a connection attempt is in progress.
	Connecting
	// Connected means the connection is established but the session is not logged in.
	Connected
	// LoggedIn means the broker accepted the session's identity.
	LoggedIn
	// ChannelsJoined means the session went through joining all its channels.
	ChannelsJoined
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case LoggedIn:
		return "logged-in"
	case ChannelsJoined:
		return "channels-joined"
	default:
		return "disconnected"
	}
}
