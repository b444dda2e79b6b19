package supabase

import (
	"context"
	"fmt"
	"net/http"
)

// AuthUser is the account embedded in a token response.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token is a GoTrue session.
type Token struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

// AuthError covers both GoTrue error payload generations.
type AuthError struct {
	Status           int    `json:"-"`
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *AuthError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.ErrorName != "":
		return e.ErrorName
	default:
		return "Authentication error"
	}
}

// SignInWithPassword exchanges e-mail and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	token := new(Token)
	authErr := new(AuthError)

	resp, err := c.auth.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(token).
		SetError(authErr).
		Post("token")
	if err != nil {
		return nil, fmt.Errorf("supabase sign in: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		authErr.Status = resp.StatusCode()
		return nil, authErr
	}

	return token, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	authErr := new(AuthError)

	resp, err := c.auth.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(authErr).
		Post("logout")
	if err != nil {
		return fmt.Errorf("supabase sign out: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		authErr.Status = resp.StatusCode()
		return authErr
	}

	return nil
}
