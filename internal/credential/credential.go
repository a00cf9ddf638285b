// Package credential holds the bearer credential of the signed-in user.
//
// A Store is a pass-through holder: it never validates what it is given.
// Backends differ only in where the value lives (memory, an encrypted file,
// redis, or a SQL key/value table).
package credential

import (
	"context"
	"errors"
	"sync"
)

// Role is the server-assigned role of a user.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

// User is the identity that owns a credential, as returned by the login endpoint.
type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	FullName        string `json:"full_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
	Status          string `json:"status,omitempty"`
	EmailVerified   bool   `json:"is_email_verified"`
}

// Credential is an opaque bearer token plus the user it was issued to.
type Credential struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// IsZero reports whether c carries no token.
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// ErrEmptyToken is returned by Set when asked to store a credential without a token.
var ErrEmptyToken = errors.New("credential: empty token")

// Store persists at most one credential. Last write wins; clearing an empty store is a no-op.
type Store interface {
	Get(ctx context.Context) (Credential, bool, error)
	Set(ctx context.Context, c Credential) error
	Clear(ctx context.Context) error
}

// Memory keeps the credential in process memory.
type Memory struct {
	mu   sync.RWMutex
	cred Credential
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get returns the held credential.
func (m *Memory) Get(ctx context.Context) (Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, !m.cred.IsZero(), nil
}

// Set replaces the held credential.
func (m *Memory) Set(ctx context.Context, c Credential) error {
	if c.IsZero() {
		return ErrEmptyToken
	}
	m.mu.Lock()
	m.cred = c
	m.mu.Unlock()
	return nil
}

// Clear drops the held credential.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.cred = Credential{}
	m.mu.Unlock()
	return nil
}
