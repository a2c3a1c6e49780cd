package backend

import (
	"context"
	"fmt"
	"io"

	"wallet/internal/amqp"
	"wallet/internal/config"
	"wallet/internal/log"
	"wallet/internal/services"
	"wallet/internal/session"
	"wallet/internal/session/local"
	"wallet/internal/session/revocation"
	"wallet/internal/session/supabase"
	"wallet/internal/storage"
	"wallet/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewComponentLogger(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(cfg)
	case MemoryBackend:
		return f.createMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// a nil *amqp.Client must not end up in the interface
	var pub services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			pub = client
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	entries := services.NewEntryService(repo, pub)

	f.logger.Info("Initialized SQLite backend",
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", pub != nil)

	return &Result{
		Store:       repo,
		Entries:     entries,
		Users:       repo,
		Credentials: repo,
		Ping:        repo.Ping,
		Cleanup:     entries.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *Result {
	st := memory.NewSeeded()
	entries := services.NewEntryService(st, nil)

	f.logger.Info("Initialized memory backend")

	return &Result{
		Store:       st,
		Entries:     entries,
		Users:       session.NewMemoryRegistry(),
		Credentials: local.NewMemoryCredentials(),
		Ping:        func(context.Context) error { return nil },
		Cleanup:     entries.Close,
	}
}

// CreateSessions implements Factory.CreateSessions. Local sessions keep
// users and credentials in the data backend; hosted sessions keep both
// with the provider.
func (f *DefaultFactory) CreateSessions(ctx context.Context, cfg SessionConfig, data *Result) (*Sessions, error) {
	switch cfg.Backend {
	case config.SessionSupabase:
		client, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, AnonKey: cfg.SupabaseAnonKey})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
		}
		f.logger.Info("Initialized Supabase sessions", "url", cfg.SupabaseURL)
		return &Sessions{Collaborator: client, Users: client}, nil

	case config.SessionLocal, "":
		if data == nil {
			return nil, fmt.Errorf("local sessions need a data backend")
		}
		out := &Sessions{Users: data.Users}

		var revoked revocation.Store
		if cfg.RedisURL != "" {
			client, err := revocation.Dial(ctx, cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to Redis: %w", err)
			}
			revoked = revocation.NewRedis(client)
			out.Cleanup = closer(client)
		} else {
			mem := revocation.NewMemory()
			revoked = mem
			out.Revocations = mem.Cache()
		}

		provider, err := local.New(data.Credentials, revoked, local.Config{
			Secret: []byte(cfg.Secret),
			TTL:    cfg.TTL,
		})
		if err != nil {
			if out.Cleanup != nil {
				_ = out.Cleanup()
			}
			return nil, fmt.Errorf("failed to initialize local sessions: %w", err)
		}
		out.Collaborator = provider

		f.logger.Info("Initialized local sessions", "redis_revocation", cfg.RedisURL != "")
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

func closer(c io.Closer) CleanupFunc {
	return c.Close
}
