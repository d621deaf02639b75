package bus

import (
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap/zapcore"
)

const identityDomain = "functiongateway.local"

// Identity is the set of credentials a session logs in with. A new one is generated on every reconnect.
type Identity struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// NewIdentity generates a unique identity.
func NewIdentity() Identity {
	id := uuid.NewV4().String()
	return Identity{
		ID:       id,
		Name:     id,
		Email:    id + "@" + identityDomain,
		Password: id,
	}
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface.
func (i Identity) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", i.ID)
	enc.AddString("email", i.Email)
	return nil
}
