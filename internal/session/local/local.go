// Package local implements the session collaborator in process: bcrypt
// password hashes in the credential store and HS256 JWT access tokens.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wallet/internal/log"
	"wallet/internal/session"
	"wallet/internal/session/revocation"
	"wallet/internal/storage"
)

// CredentialStore persists email/password-hash pairs.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c storage.Credential) error
	CredentialByEmail(ctx context.Context, email string) (storage.Credential, error)
}

type Config struct {
	Secret            []byte
	TTL               time.Duration
	Issuer            string
	BcryptCost        int
	MinPasswordLength int
}

func DefaultConfig() Config {
	return Config{
		TTL:               24 * time.Hour,
		Issuer:            "wallet",
		BcryptCost:        12,
		MinPasswordLength: 6,
	}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider is a session.Collaborator.
type Provider struct {
	creds   CredentialStore
	revoked revocation.Store
	cfg     Config
	now     func() time.Time
	logger  *log.Logger
}

var _ session.Collaborator = (*Provider)(nil)

func New(creds CredentialStore, revoked revocation.Store, cfg Config) (*Provider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = def.MinPasswordLength
	}
	if revoked == nil {
		revoked = revocation.NewMemory()
	}
	return &Provider{
		creds:   creds,
		revoked: revoked,
		cfg:     cfg,
		now:     time.Now,
		logger:  log.NewComponentLogger(log.ComponentSession),
	}, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if len(password) < p.cfg.MinPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters", session.ErrWeakPassword, p.cfg.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	c := storage.Credential{UserID: uuid.New(), Email: email, PasswordHash: string(hash)}
	if err := p.creds.CreateCredential(ctx, c); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, session.ErrUserExists
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}
	p.logger.InfoContext(ctx, "User signed up", log.FieldUserID, c.UserID, log.FieldOperation, log.OpSignUp)
	return p.issue(session.User{ID: c.UserID, Email: strings.ToLower(email)})
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	c, err := p.creds.CredentialByEmail(ctx, email)
	if errors.Is(err, storage.ErrUnknownEmail) {
		return nil, session.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, session.ErrInvalidCredentials
	}
	return p.issue(session.User{ID: c.UserID, Email: c.Email})
}

func (p *Provider) GetSession(ctx context.Context, accessToken string) (*session.Session, error) {
	cl, err := p.parse(accessToken)
	if err != nil {
		return nil, nil
	}
	revoked, err := p.revoked.IsRevoked(ctx, cl.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if revoked {
		return nil, nil
	}
	id, err := uuid.Parse(cl.Subject)
	if err != nil {
		return nil, nil
	}
	return &session.Session{
		AccessToken: accessToken,
		User:        session.User{ID: id, Email: cl.Email},
		ExpiresAt:   cl.ExpiresAt.Time,
	}, nil
}

// SignOut revokes the token until its expiry. Tokens that no longer parse
// are already unusable and are ignored.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	cl, err := p.parse(accessToken)
	if err != nil {
		return nil
	}
	if err := p.revoked.Revoke(ctx, cl.ID, cl.ExpiresAt.Time); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	p.logger.InfoContext(ctx, "User signed out", log.FieldUserID, cl.Subject, log.FieldOperation, log.OpSignOut)
	return nil
}

func (p *Provider) issue(u session.User) (*session.Session, error) {
	now := p.now()
	exp := now.Add(p.cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(p.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &session.Session{AccessToken: signed, User: u, ExpiresAt: exp.Truncate(time.Second)}, nil
}

func (p *Provider) parse(tokenStr string) (*claims, error) {
	cl := &claims{}
	token, err := jwt.ParseWithClaims(tokenStr, cl, func(*jwt.Token) (any, error) {
		return p.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || cl.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return cl, nil
}

// MemoryCredentials is a process-local CredentialStore.
type MemoryCredentials struct {
	mu      sync.RWMutex
	byEmail map[string]storage.Credential
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{byEmail: map[string]storage.Credential{}}
}

func (m *MemoryCredentials) CreateCredential(_ context.Context, c storage.Credential) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[c.Email]; ok {
		return storage.ErrEmailTaken
	}
	m.byEmail[c.Email] = c
	return nil
}

func (m *MemoryCredentials) CredentialByEmail(_ context.Context, email string) (storage.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return storage.Credential{}, storage.ErrUnknownEmail
	}
	return c, nil
}
