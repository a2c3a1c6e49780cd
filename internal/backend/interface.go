package backend

import (
	"context"
	"time"

	"wallet/internal/cache"
	"wallet/internal/services"
	"wallet/internal/session"
	"wallet/internal/session/local"
	"wallet/internal/store"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result is the wired data backend.
type Result struct {
	Store       store.Store
	Entries     *services.EntryService
	Users       session.UserRegistry
	Credentials local.CredentialStore
	// Ping reports whether the backing database is reachable.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Sessions is the wired session collaborator and its user registry.
type Sessions struct {
	Collaborator session.Collaborator
	Users        session.UserRegistry
	// Revocations is the in-process revocation cache, nil when revoked
	// tokens live in Redis or the collaborator is hosted.
	Revocations cache.Cleaner
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
	CreateSessions(ctx context.Context, config SessionConfig, data *Result) (*Sessions, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// SessionConfig selects and configures the session collaborator.
type SessionConfig struct {
	Backend         string
	Secret          string
	TTL             time.Duration
	SupabaseURL     string
	SupabaseAnonKey string
	RedisURL        string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
