package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wallet/internal/log"
	"wallet/internal/session"
)

// withSession attaches the per-request session state built from the
// bearer token or session cookie.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := session.NewContext(s.sessions, bearerToken(r))
		next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), sc)))
	})
}

// requireSession rejects requests without a valid session and tags the
// request logger with the user id.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := session.FromContext(ctx).Session(ctx)
		if err != nil {
			s.logger.LogError(ctx, "Session lookup failed", err, log.ComponentSession, "get_session", nil)
			writeSessionError(w, err)
			return
		}
		if sess == nil {
			UnauthorizedError("Sign in to continue").Write(w)
			return
		}
		logger := log.FromContext(ctx).With(log.FieldUserID, sess.User.ID.String())
		next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := s.credentials(w, r, false)
	if !ok {
		return
	}
	sess, err := s.sessions.SignInWithPassword(r.Context(), req.Email, req.Password)
	s.finishSignIn(w, r, sess, err, log.OpSignIn, "Signed in")
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := s.credentials(w, r, true)
	if !ok {
		return
	}
	sess, err := s.sessions.SignUp(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, session.ErrUserExists):
		ErrorResponse(http.StatusConflict, "an account with this email already exists").
			NotifyError("An account with this email already exists").
			Write(w)
		return
	case errors.Is(err, session.ErrWeakPassword):
		ValidationError("password is too weak", err).Write(w)
		return
	}
	if err == nil && sess != nil && s.users != nil {
		if rerr := s.users.Insert(r.Context(), sess.User.ID); rerr != nil {
			s.logger.LogError(r.Context(), "Error adding user to registry", rerr, log.ComponentSession, log.OpSignUp,
				log.NewFields().WithUser(sess.User.ID.String()))
		}
	}
	// hosted providers may require email confirmation before a session
	// exists; the account is created but carries no token yet
	if err == nil && (sess == nil || sess.AccessToken == "") {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Sign-up awaiting confirmation", log.FieldOperation, log.OpSignUp)
		NewJSONResponse().Status(http.StatusAccepted).
			Data(map[string]any{"confirmation_required": true}).
			Notify(NotificationInfo, "Check your inbox to confirm the account", 5000).
			Write(w)
		return
	}
	s.finishSignIn(w, r, sess, err, log.OpSignUp, "Account created")
}

func (s *Server) handleDemoSignIn(w http.ResponseWriter, r *http.Request) {
	if s.demo.Email == "" {
		NotFoundError("demo account disabled").Write(w)
		return
	}
	sess, err := session.DemoSignIn(r.Context(), s.sessions, s.users, s.demo.Email, s.demo.Password)
	s.finishSignIn(w, r, sess, err, log.OpSignIn, "Signed in to the demo account")
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := session.FromContext(ctx).SignOut(ctx)
	clearSessionCookie(w, r)
	if err != nil {
		s.logger.LogError(ctx, "Sign out failed", err, log.ComponentSession, log.OpSignOut, nil)
		writeSessionError(w, err)
		return
	}
	NewJSONResponse().Data(map[string]any{"signed_out": true}).NotifySuccess("Signed out").Write(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := session.FromContext(ctx).Session(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if sess == nil {
		UnauthorizedError("not signed in").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"user":       sess.User,
		"expires_at": sess.ExpiresAt,
	}).Write(w)
}

// credentials reads and validates an email/password body. Sign-up applies
// the password length rule; sign-in only requires a value.
func (s *Server) credentials(w http.ResponseWriter, r *http.Request, signUp bool) (CredentialsRequest, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return CredentialsRequest{}, false
	}
	req := CredentialsRequest{Email: p.Get("email"), Password: p.Get("password")}

	var err error
	if signUp {
		err = s.validator.Struct(req)
	} else {
		err = s.validator.Struct(SignInRequest(req))
	}
	if err != nil {
		ValidationError("invalid credentials", err).Write(w)
		return CredentialsRequest{}, false
	}
	return req, true
}

func (s *Server) finishSignIn(w http.ResponseWriter, r *http.Request, sess *session.Session, err error, op, message string) {
	ctx := r.Context()
	if err != nil || sess == nil {
		if err == nil {
			err = session.ErrInvalidCredentials
		}
		log.FromContext(ctx).WarnContext(ctx, "Authentication failed", log.FieldOperation, op, log.FieldError, err)
		writeSessionError(w, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Authenticated", log.FieldOperation, op, log.FieldUserID, sess.User.ID.String())

	setSessionCookie(w, r, sess)
	NewJSONResponse().Data(map[string]any{
		"access_token": sess.AccessToken,
		"user":         sess.User,
		"expires_at":   sess.ExpiresAt,
	}).NotifySuccess(message).Write(w)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		UnauthorizedError("Invalid login credentials").Write(w)
	case errors.Is(err, session.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		ServiceUnavailableError("authentication service unavailable").
			NotifyError("Authentication is temporarily unavailable").
			Write(w)
	default:
		UnauthorizedError("Authentication failed").Write(w)
	}
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		c.Expires = sess.ExpiresAt
	}
	http.SetCookie(w, c)
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
