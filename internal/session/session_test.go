package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollab struct {
	users      map[string]string // email -> password
	ids        map[string]uuid.UUID
	signUpErr  error
	signIns    int
	signUps    int
	signedOut  []string
	sessionErr error
}

func newFakeCollab() *fakeCollab {
	return &fakeCollab{users: map[string]string{}, ids: map[string]uuid.UUID{}}
}

func (f *fakeCollab) GetSession(_ context.Context, token string) (*Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	for email, id := range f.ids {
		if token == "tok-"+email {
			return &Session{AccessToken: token, User: User{ID: id, Email: email}, ExpiresAt: time.Now().Add(time.Hour)}, nil
		}
	}
	return nil, nil
}

func (f *fakeCollab) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	f.signIns++
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, ErrInvalidCredentials
	}
	return &Session{AccessToken: "tok-" + email, User: User{ID: f.ids[email], Email: email}}, nil
}

func (f *fakeCollab) SignUp(_ context.Context, email, password string) (*Session, error) {
	f.signUps++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	f.users[email] = password
	f.ids[email] = uuid.New()
	return &Session{User: User{ID: f.ids[email], Email: email}}, nil
}

func (f *fakeCollab) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

type failingRegistry struct{ inserts int }

func (r *failingRegistry) Insert(context.Context, uuid.UUID) error {
	r.inserts++
	return errors.New("relation users does not exist")
}
func (r *failingRegistry) Exists(context.Context, uuid.UUID) (bool, error) { return false, nil }

func TestDemoSignIn_ExistingUser(t *testing.T) {
	c := newFakeCollab()
	c.users["demo@wallet.com"] = "pw"
	c.ids["demo@wallet.com"] = uuid.New()
	reg := NewMemoryRegistry()

	s, err := DemoSignIn(context.Background(), c, reg, "demo@wallet.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-demo@wallet.com", s.AccessToken)
	assert.Equal(t, 0, c.signUps)
	ok, _ := reg.Exists(context.Background(), s.User.ID)
	assert.False(t, ok, "an existing user is not registered again")
}

func TestDemoSignIn_CreatesAndRegisters(t *testing.T) {
	c := newFakeCollab()
	reg := NewMemoryRegistry()

	s, err := DemoSignIn(context.Background(), c, reg, "demo@wallet.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 2, c.signIns)
	assert.Equal(t, 1, c.signUps)
	ok, _ := reg.Exists(context.Background(), s.User.ID)
	assert.True(t, ok)
}

func TestDemoSignIn_RegistryFailureStillSignsIn(t *testing.T) {
	c := newFakeCollab()
	reg := &failingRegistry{}

	s, err := DemoSignIn(context.Background(), c, reg, "demo@wallet.com", "pw")
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, 1, reg.inserts)
}

func TestDemoSignIn_SignUpFailureReturnsSignInError(t *testing.T) {
	c := newFakeCollab()
	c.signUpErr = errors.New("signups disabled")

	_, err := DemoSignIn(context.Background(), c, NewMemoryRegistry(), "demo@wallet.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestContext(t *testing.T) {
	c := newFakeCollab()
	id := uuid.New()
	c.ids["a@b.c"] = id
	ctx := context.Background()

	sc := NewContext(c, "tok-a@b.c")
	u := sc.User(ctx)
	require.NotNil(t, u)
	assert.Equal(t, id, u.ID)

	require.NoError(t, sc.SignOut(ctx))
	assert.Equal(t, []string{"tok-a@b.c"}, c.signedOut)
	assert.Nil(t, sc.User(ctx))

	anon := NewContext(c, "")
	s, err := anon.Session(ctx)
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, anon.SignOut(ctx))
	assert.Len(t, c.signedOut, 1)
}

func TestContextSurfacesCollaboratorError(t *testing.T) {
	c := newFakeCollab()
	c.sessionErr = ErrUnavailable
	_, err := NewContext(c, "tok").Session(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestContextRejectsExpired(t *testing.T) {
	c := newFakeCollab()
	c.ids["a@b.c"] = uuid.New()
	sc := NewContext(c, "tok-a@b.c")
	sc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s, err := sc.Session(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	sc := NewContext(newFakeCollab(), "")
	assert.Same(t, sc, FromContext(WithContext(context.Background(), sc)))
}
