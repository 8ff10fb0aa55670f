// Package auth gates the upload tool behind an operator credential check.
// The check is a capability injected into the interface layer so it can be
// swapped without touching orchestration.
package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrInvalidCredentials is returned when the username/password pair does not
// match the authorized table.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Verifier checks an operator login attempt.
type Verifier interface {
	Verify(username, password string) error
}

// Static verifies against a fixed username→password table, normally loaded
// from configuration.
type Static struct {
	users map[string]string
}

// NewStatic builds a Static verifier. The map is copied.
func NewStatic(users map[string]string) *Static {
	copied := make(map[string]string, len(users))
	for u, p := range users {
		copied[u] = p
	}
	return &Static{users: copied}
}

// Verify implements Verifier using constant-time password comparison.
func (s *Static) Verify(username, password string) error {
	expected, ok := s.users[username]
	if !ok {
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
