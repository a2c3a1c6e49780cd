package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUnknownEmail = errors.New("unknown email")
)

const (
	queryInsertUser = `INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`

	queryUserExists = `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`

	queryInsertCredential = `INSERT INTO credentials (user_id, email, password_hash, created_at)
	VALUES (?, ?, ?, ?) ON CONFLICT(email) DO NOTHING`

	queryCredentialByEmail = `SELECT user_id, password_hash FROM credentials WHERE email = ?`
)

// Insert adds id to the users registry. Inserting an id twice is a no-op.
func (r *SQLiteRepository) Insert(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, queryInsertUser, id.String(), r.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert user %s: %w", id, err)
	}
	return nil
}

// Exists reports whether id is in the users registry.
func (r *SQLiteRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, queryUserExists, id.String()).Scan(&ok); err != nil {
		return false, fmt.Errorf("check user %s: %w", id, err)
	}
	return ok, nil
}

// Credential is a stored email/password-hash pair.
type Credential struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
}

// CreateCredential stores the login of a new user.
func (r *SQLiteRepository) CreateCredential(ctx context.Context, c Credential) error {
	res, err := r.db.ExecContext(ctx, queryInsertCredential,
		c.UserID.String(), normalizeEmail(c.Email), c.PasswordHash, r.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if n == 0 {
		return ErrEmailTaken
	}
	return nil
}

// CredentialByEmail looks up the login of email.
func (r *SQLiteRepository) CredentialByEmail(ctx context.Context, email string) (Credential, error) {
	email = normalizeEmail(email)
	var (
		c  = Credential{Email: email}
		id string
	)
	err := r.db.QueryRowContext(ctx, queryCredentialByEmail, email).Scan(&id, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrUnknownEmail
	}
	if err != nil {
		return Credential{}, fmt.Errorf("get credential: %w", err)
	}
	if c.UserID, err = uuid.Parse(id); err != nil {
		return Credential{}, fmt.Errorf("parse user id %q: %w", id, err)
	}
	return c, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
