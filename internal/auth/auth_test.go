package auth

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type fakeIDP struct {
	token     *supabase.Token
	err       error
	signedOut []string
}

func (f *fakeIDP) SignInWithPassword(context.Context, string, string) (*supabase.Token, error) {
	return f.token, f.err
}

func (f *fakeIDP) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

type fakeNames struct{ calls int }

func (f *fakeNames) DisplayName(_ context.Context, _, email string) string {
	f.calls++
	return "Name of " + email
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign(NewClaims("user-1", "ada@farm.io", time.Now(), time.Hour))
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ada@farm.io", claims.Email)

	expired, err := v.Sign(NewClaims("user-1", "ada@farm.io", time.Now().Add(-2*time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifier("other-secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tok", Session{UserID: "u"}, time.Minute))
	got, err := c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u", got.UserID)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "tok", Session{UserID: "u"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "tok"))
	_, err = c.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLogin(t *testing.T) {
	idp := &fakeIDP{token: &supabase.Token{
		AccessToken: "access",
		ExpiresIn:   3600,
		User:        supabase.AuthUser{ID: "user-1", Email: "ada@farm.io"},
	}}
	names := &fakeNames{}
	a := NewAuthenticator(idp, NewVerifier(testSecret), nil, names, nil)

	session, err := a.Login(context.Background(), " ada@farm.io ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "Name of ada@farm.io", session.DisplayName)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	resolved, err := a.Resolve(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, "user-1", resolved.UserID)
	assert.Equal(t, 1, names.calls)

	require.NoError(t, a.Logout(context.Background(), *session))
	assert.Equal(t, []string{"access"}, idp.signedOut)

	_, err = a.Resolve(context.Background(), "access")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestLoginValidation(t *testing.T) {
	a := NewAuthenticator(&fakeIDP{}, NewVerifier(testSecret), nil, nil, nil)

	_, err := a.Login(context.Background(), "", "")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)
}

func TestLoginErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		want string
	}{
		{
			name: "bad credentials",
			err:  &supabase.AuthError{Status: 400, Msg: "Invalid login credentials"},
			kind: apperr.KindUnauthorized,
			want: msgInvalidCredentials,
		},
		{
			name: "unconfirmed",
			err:  &supabase.AuthError{Status: 400, ErrorDescription: "Email not confirmed"},
			kind: apperr.KindUnauthorized,
			want: msgEmailNotConfirmed,
		},
		{
			name: "rate limited",
			err:  &supabase.AuthError{Status: 429, Msg: "Request rate limit reached"},
			kind: apperr.KindUnauthorized,
			want: msgRateLimited,
		},
		{
			name: "other provider message",
			err:  &supabase.AuthError{Status: 422, Msg: "Signups not allowed"},
			kind: apperr.KindUnauthorized,
			want: "Signups not allowed",
		},
		{
			name: "network",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			kind: apperr.KindNetwork,
			want: "Network error: Unable to connect to the server. Please check your internet connection.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(&fakeIDP{err: tt.err}, NewVerifier(testSecret), nil, nil, nil)
			_, err := a.Login(context.Background(), "ada@farm.io", "pw")

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestResolveVerifiesUncachedTokens(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign(NewClaims("user-2", "bo@farm.io", time.Now(), time.Hour))
	require.NoError(t, err)

	cache := NewMemoryCache()
	a := NewAuthenticator(&fakeIDP{}, v, cache, &fakeNames{}, nil)

	session, err := a.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", session.UserID)
	assert.Equal(t, "Name of bo@farm.io", session.DisplayName)

	cached, err := cache.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", cached.UserID)

	_, err = a.Resolve(context.Background(), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = a.Resolve(context.Background(), "garbage")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), Session{UserID: "u"})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", s.UserID)
}
