// Package session defines the contract of the authentication collaborator
// and the keyed users registry, plus the per-request session state built on
// top of them.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrWeakPassword       = errors.New("password too short")
	// ErrUnavailable wraps transport failures talking to the collaborator.
	ErrUnavailable = errors.New("session service unavailable")
)

type (
	User struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}

	Session struct {
		AccessToken string    `json:"access_token"`
		User        User      `json:"user"`
		ExpiresAt   time.Time `json:"expires_at"`
	}

	// Collaborator is the external authentication service.
	Collaborator interface {
		// GetSession resolves an access token. An unknown, expired or
		// revoked token yields (nil, nil).
		GetSession(ctx context.Context, accessToken string) (*Session, error)
		SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
		// SignUp creates the account. When the account must be confirmed
		// first, the session carries the user and an empty AccessToken.
		SignUp(ctx context.Context, email, password string) (*Session, error)
		SignOut(ctx context.Context, accessToken string) error
	}

	// UserRegistry is the keyed "users" store, keyed by the collaborator's
	// native user id.
	UserRegistry interface {
		Insert(ctx context.Context, id uuid.UUID) error
		Exists(ctx context.Context, id uuid.UUID) (bool, error)
	}
)

// Valid reports a non-nil session that has not expired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

// MemoryRegistry is a process-local UserRegistry.
type MemoryRegistry struct {
	mu  sync.RWMutex
	ids map[uuid.UUID]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: map[uuid.UUID]struct{}{}}
}

func (r *MemoryRegistry) Insert(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok, nil
}
