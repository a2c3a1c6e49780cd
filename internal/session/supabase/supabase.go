// Package supabase talks to a hosted Supabase project: GoTrue for
// authentication and PostgREST for the users registry.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"wallet/internal/log"
	"wallet/internal/session"
)

type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

// Client implements session.Collaborator and session.UserRegistry.
type Client struct {
	base    *url.URL
	anonKey string
	http    *http.Client
	now     func() time.Time
	logger  *log.Logger
}

var (
	_ session.Collaborator = (*Client)(nil)
	_ session.UserRegistry = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		base:    base,
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		logger:  log.NewComponentLogger(log.ComponentSession),
	}, nil
}

type (
	gotrueUser struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	// signup returns the session fields at top level when auto-confirm is
	// on, and only the user fields otherwise.
	gotrueSession struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   int64       `json:"expires_in"`
		ExpiresAt   int64       `json:"expires_at"`
		User        *gotrueUser `json:"user"`
		gotrueUser
	}

	apiError struct {
		Status      int    `json:"-"`
		Code        string `json:"error_code"`
		ErrorName   string `json:"error"`
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
	}
)

func (e *apiError) Error() string {
	for _, s := range []string{e.Msg, e.Description, e.Message, e.ErrorName, e.Code} {
		if s != "" {
			return fmt.Sprintf("supabase %d: %s", e.Status, s)
		}
	}
	return fmt.Sprintf("supabase %d", e.Status)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends the request and decodes a 2xx body into out. Transport failures
// wrap session.ErrUnavailable; API failures come back as *apiError.
func (c *Client) do(ctx context.Context, method, endpoint, bearer string, body, out any, headers ...string) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", session.ErrUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", session.ErrUnavailable, apiErr)
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) toSession(s gotrueSession) (*session.Session, error) {
	u := s.User
	if u == nil {
		u = &s.gotrueUser
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", u.ID, err)
	}
	out := &session.Session{AccessToken: s.AccessToken, User: session.User{ID: id, Email: u.Email}}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	var s gotrueSession
	err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/token", url.Values{"grant_type": {"password"}}), "",
		credentials{Email: email, Password: password}, &s)
	var apiErr *apiError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
		return nil, fmt.Errorf("%w: %v", session.ErrInvalidCredentials, apiErr)
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return c.toSession(s)
}

// SignUp creates the account. Without auto-confirm the returned session
// has no access token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	var s gotrueSession
	err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/signup", nil), "",
		credentials{Email: email, Password: password}, &s)
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == "weak_password":
			return nil, fmt.Errorf("%w: %v", session.ErrWeakPassword, apiErr)
		case apiErr.Code == "user_already_exists" || strings.Contains(strings.ToLower(apiErr.Error()), "already registered"):
			return nil, fmt.Errorf("%w: %v", session.ErrUserExists, apiErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return c.toSession(s)
}

func (c *Client) GetSession(ctx context.Context, accessToken string) (*session.Session, error) {
	if accessToken == "" {
		return nil, nil
	}
	var u gotrueUser
	err := c.do(ctx, http.MethodGet, c.endpoint("/auth/v1/user", nil), accessToken, nil, &u)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return c.toSession(gotrueSession{AccessToken: accessToken, gotrueUser: u})
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/logout", nil), accessToken, nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		// already invalid
		return nil
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

type userRow struct {
	ID string `json:"id"`
}

// Insert adds the id to the users table, ignoring duplicates.
func (c *Client) Insert(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodPost, c.endpoint("/rest/v1/users", nil), "", userRow{ID: id.String()}, nil,
		"Prefer", "resolution=ignore-duplicates,return=minimal")
	if err != nil {
		return fmt.Errorf("insert user %s: %w", id, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var rows []userRow
	q := url.Values{"id": {"eq." + id.String()}, "select": {"id"}}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/rest/v1/users", q), "", nil, &rows); err != nil {
		return false, fmt.Errorf("check user %s: %w", id, err)
	}
	return len(rows) > 0, nil
}
