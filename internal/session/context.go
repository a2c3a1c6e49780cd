package session

import (
	"context"
	"sync"
	"time"
)

// Context is the session state of one request. It is created by the HTTP
// session middleware from the bearer token and torn down by SignOut.
type Context struct {
	collab Collaborator
	token  string
	now    func() time.Time

	once    sync.Once
	session *Session
	err     error
}

func NewContext(c Collaborator, accessToken string) *Context {
	return &Context{collab: c, token: accessToken, now: time.Now}
}

// Session resolves the token once per request. It returns nil when the
// token is missing, unknown or expired.
func (c *Context) Session(ctx context.Context) (*Session, error) {
	c.once.Do(func() {
		if c.token == "" {
			return
		}
		s, err := c.collab.GetSession(ctx, c.token)
		if err != nil {
			c.err = err
			return
		}
		if s.Valid(c.now()) {
			c.session = s
		}
	})
	return c.session, c.err
}

// User returns the signed-in user, or nil.
func (c *Context) User(ctx context.Context) *User {
	s, _ := c.Session(ctx)
	if s == nil {
		return nil
	}
	return &s.User
}

// SignOut ends the session at the collaborator and clears the local state.
func (c *Context) SignOut(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	err := c.collab.SignOut(ctx, c.token)
	c.session = nil
	c.token = ""
	return err
}

type ctxKey struct{}

func WithContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the request's session state, or nil outside the
// session middleware.
func FromContext(ctx context.Context) *Context {
	sc, _ := ctx.Value(ctxKey{}).(*Context)
	return sc
}
