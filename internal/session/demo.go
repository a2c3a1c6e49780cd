package session

import (
	"context"
	"fmt"

	"wallet/internal/log"
)

// DemoSignIn signs the demo account in, creating it on first use. When the
// first sign-in fails the account is signed up, its id is added to the
// registry unless already present, and sign-in is retried. A failing
// registry does not prevent the retry. If sign-up fails too the original
// sign-in error is returned.
func DemoSignIn(ctx context.Context, c Collaborator, reg UserRegistry, email, password string) (*Session, error) {
	logger := log.NewComponentLogger(log.ComponentSession)

	s, signInErr := c.SignInWithPassword(ctx, email, password)
	if signInErr == nil && s != nil {
		return s, nil
	}

	created, err := c.SignUp(ctx, email, password)
	if err != nil || created == nil {
		logger.WarnContext(ctx, "Demo sign-up failed", log.FieldError, err, log.FieldOperation, log.OpSignUp)
		if signInErr == nil {
			signInErr = ErrInvalidCredentials
		}
		return nil, fmt.Errorf("demo sign in: %w", signInErr)
	}

	if err := register(ctx, reg, created.User); err != nil {
		logger.ErrorContext(ctx, "Error adding demo user to registry",
			log.FieldUserID, created.User.ID, log.FieldError, err)
	}

	s, err = c.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("demo sign in after sign-up: %w", err)
	}
	return s, nil
}

func register(ctx context.Context, reg UserRegistry, u User) error {
	if reg == nil {
		return nil
	}
	ok, err := reg.Exists(ctx, u.ID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return reg.Insert(ctx, u.ID)
}
