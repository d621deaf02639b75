package broker

import (
	"fmt"
)

// ErrUnknownChannel occurs when a message names a channel the broker doesn't have.
type ErrUnknownChannel struct {
	Name string
}

func (e ErrUnknownChannel) Error() string {
	return fmt.Sprintf("Channel %q doesn't exist.", e.Name)
}

// ErrInvalidChannelKind occurs when a channel kind is neither "broadcast" nor "unicast".
type ErrInvalidChannelKind struct {
	Kind string
}

func (e ErrInvalidChannelKind) Error() string {
	return fmt.Sprintf("Channel kind %q is invalid, it must be \"broadcast\" or \"unicast\".", e.Kind)
}

// ErrChannelExists occurs when creating a channel that already exists.
type ErrChannelExists struct {
	Name string
}

func (e ErrChannelExists) Error() string {
	return fmt.Sprintf("Channel %q already exists.", e.Name)
}

// ErrInvalidCredentials occurs when login password doesn't match the registered one.
type ErrInvalidCredentials struct {
	Email string
}

func (e ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("Invalid credentials for %q.", e.Email)
}
