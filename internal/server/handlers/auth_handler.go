package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

// SessionAuthority signs users in and out and resolves bearer tokens.
type SessionAuthority interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, session auth.Session) error
	Resolve(ctx context.Context, token string) (*auth.Session, error)
}

// ProfileService reads and edits the signed in user's profile.
type ProfileService interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
}

// AuthHandler serves sign in, sign out and profile endpoints.
type AuthHandler struct {
	auth     SessionAuthority
	profiles ProfileService
	logger   *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(authority SessionAuthority, profiles ProfileService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: authority, profiles: profiles, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequireSession resolves the bearer token and stores the session on the
// request context. The token is also forwarded to the hosted store so row
// level security applies.
func (h *AuthHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		session, err := h.auth.Resolve(c.Request.Context(), token)
		if err != nil {
			fail(c, h.logger, err)
			return
		}

		ctx := auth.WithSession(c.Request.Context(), *session)
		ctx = supabase.WithAccessToken(ctx, session.AccessToken)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Login exchanges credentials for a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, h.logger, &req) {
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, session)
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := sessionFrom(c, h.logger)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), session); err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"signed_out": true})
}

// Profile returns the signed in user's profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	session, ok := sessionFrom(c, h.logger)
	if !ok {
		return
	}
	profile, err := h.profiles.Profile(c.Request.Context(), session.UserID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// UpdateProfile edits the signed in user's names.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	session, ok := sessionFrom(c, h.logger)
	if !ok {
		return
	}
	var update models.ProfileUpdate
	if !bind(c, h.logger, &update) {
		return
	}
	profile, err := h.profiles.UpdateProfile(c.Request.Context(), session.UserID, update)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, profile)
}
