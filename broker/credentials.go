package broker

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Credentials stores bcrypt hashes of client passwords by email. Unknown emails are
// registered on first login.
type Credentials struct {
	cost int

	mu     sync.Mutex
	hashes map[string][]byte
}

// NewCredentials creates an empty store. Every reconnect registers a new identity so the
// minimum bcrypt cost is used.
func NewCredentials() *Credentials {
	return &Credentials{
		cost:   bcrypt.MinCost,
		hashes: map[string][]byte{},
	}
}

// Verify checks the password, registering the email if it's not known yet.
func (c *Credentials) Verify(email, password string) error {
	if email == "" || password == "" {
		return &ErrInvalidCredentials{Email: email}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hash, ok := c.hashes[email]
	if !ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
		if err != nil {
			return err
		}
		c.hashes[email] = hash
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return &ErrInvalidCredentials{Email: email}
	}
	return nil
}

// Forget removes the email.
func (c *Credentials) Forget(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hashes, email)
}
