package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

const (
	msgInvalidCredentials = "Invalid email or password. Please try again."
	msgEmailNotConfirmed  = "Your email has not been verified. Please check your inbox."
	msgRateLimited        = "Too many login attempts. Please wait and try again later."
	msgMissingToken       = "Authentication required"
	msgInvalidToken       = "Your session has expired. Please sign in again."

	defaultSessionTTL = time.Hour
)

// IdentityProvider is the subset of the Supabase auth API used here.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Token, error)
	SignOut(ctx context.Context, accessToken string) error
}

// DisplayNamer resolves the name recorded as a health event's performer.
type DisplayNamer interface {
	DisplayName(ctx context.Context, userID, email string) string
}

// Authenticator signs users in and out and turns bearer tokens into sessions.
type Authenticator struct {
	idp      IdentityProvider
	verifier *Verifier
	cache    Cache
	names    DisplayNamer
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthenticator wires an authenticator. A nil cache keeps sessions in process.
func NewAuthenticator(idp IdentityProvider, verifier *Verifier, cache Cache, names DisplayNamer, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Authenticator{
		idp:      idp,
		verifier: verifier,
		cache:    cache,
		names:    names,
		logger:   logger,
		now:      time.Now,
	}
}

// Login exchanges credentials for a session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)

	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	token, err := a.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.logger.Warn("sign in failed", zap.String("email", email), zap.Error(err))
		return nil, loginError(err)
	}

	session := Session{
		UserID:      token.User.ID,
		Email:       token.User.Email,
		AccessToken: token.AccessToken,
		ExpiresAt:   a.expiry(token),
	}
	session.DisplayName = a.displayName(ctx, session)

	a.remember(ctx, session)
	a.logger.Info("user signed in", zap.String("user_id", session.UserID))
	return &session, nil
}

// Logout revokes the session's token and forgets it.
func (a *Authenticator) Logout(ctx context.Context, session Session) error {
	if err := a.cache.Delete(ctx, session.AccessToken); err != nil {
		a.logger.Warn("drop cached session failed", zap.Error(err))
	}

	if err := a.idp.SignOut(ctx, session.AccessToken); err != nil {
		a.logger.Warn("sign out failed", zap.String("user_id", session.UserID), zap.Error(err))
		return apperr.From(err)
	}

	a.logger.Info("user signed out", zap.String("user_id", session.UserID))
	return nil
}

// Resolve returns the session for a bearer token, consulting the cache first.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.Unauthorized(msgMissingToken, nil)
	}

	cached, err := a.cache.Get(ctx, token)
	switch {
	case err == nil && !cached.Expired(a.now()):
		return cached, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		a.logger.Warn("session cache lookup failed", zap.Error(err))
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, apperr.Unauthorized(msgInvalidToken, err)
	}

	session := Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	session.DisplayName = a.displayName(ctx, session)

	a.remember(ctx, session)
	return &session, nil
}

func (a *Authenticator) displayName(ctx context.Context, s Session) string {
	if a.names == nil {
		return ""
	}
	return a.names.DisplayName(supabase.WithAccessToken(ctx, s.AccessToken), s.UserID, s.Email)
}

func (a *Authenticator) remember(ctx context.Context, s Session) {
	ttl := defaultSessionTTL
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(a.now())
	}
	if ttl <= 0 {
		return
	}
	if err := a.cache.Set(ctx, s.AccessToken, s, ttl); err != nil {
		a.logger.Warn("cache session failed", zap.Error(err))
	}
}

func (a *Authenticator) expiry(t *supabase.Token) time.Time {
	switch {
	case t.ExpiresAt > 0:
		return time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		return a.now().Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	default:
		return a.now().Add(defaultSessionTTL).UTC()
	}
}

// loginError maps provider failures onto the messages shown on the sign in form.
func loginError(err error) error {
	var authErr *supabase.AuthError
	if !errors.As(err, &authErr) {
		return apperr.From(err)
	}

	msg := authErr.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid login credentials"):
		return apperr.Unauthorized(msgInvalidCredentials, err)
	case strings.Contains(lower, "email not confirmed"):
		return apperr.Unauthorized(msgEmailNotConfirmed, err)
	case strings.Contains(lower, "rate limit") || authErr.Status == http.StatusTooManyRequests:
		return apperr.Unauthorized(msgRateLimited, err)
	default:
		return apperr.Unauthorized(msg, err)
	}
}
