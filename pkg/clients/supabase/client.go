package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/milkmatrix/internal/config"
)

// Client talks to the Supabase REST (PostgREST) and auth (GoTrue) endpoints.
type Client struct {
	rest    *resty.Client
	auth    *resty.Client
	anonKey string
}

// NewClient builds a Supabase client using the provided configuration values.
func NewClient(cfg config.SupabaseConfig) *Client {
	rest := resty.New().
		SetBaseURL(cfg.URL+"/rest/v1").
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-client-info", "milkmatrix-server").
		SetTimeout(15 * time.Second)

	auth := resty.New().
		SetBaseURL(cfg.URL+"/auth/v1").
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{rest: rest, auth: auth, anonKey: cfg.AnonKey}
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose REST calls run as the given user, so
// row level security applies. Without it calls use the anon key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func (c *Client) bearer(ctx context.Context) string {
	if token, ok := ctx.Value(accessTokenKey{}).(string); ok && token != "" {
		return token
	}
	return c.anonKey
}

// APIError mirrors a PostgREST error payload.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Details != "":
		return e.Details
	default:
		return fmt.Sprintf("supabase request failed with status %d", e.Status)
	}
}

// UniqueViolation reports whether the error is a unique constraint conflict.
func (e *APIError) UniqueViolation() bool {
	return e.Code == "23505" || e.Status == http.StatusConflict
}

// Select runs GET /table with PostgREST query parameters and decodes rows into out.
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, table, query, nil, out)
}

// Insert posts row to the table and decodes the stored representation into out.
func (c *Client) Insert(ctx context.Context, table string, row any, query url.Values, out any) error {
	return c.do(ctx, http.MethodPost, table, query, row, out)
}

// Update patches the rows matching query and decodes the updated rows into out.
func (c *Client) Update(ctx context.Context, table string, query url.Values, patch any, out any) error {
	return c.do(ctx, http.MethodPatch, table, query, patch, out)
}

// Delete removes the rows matching query and decodes the removed rows into out.
func (c *Client) Delete(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodDelete, table, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	apiErr := new(APIError)

	req := c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.bearer(ctx)).
		SetError(apiErr)
	if method != http.MethodGet {
		req.SetHeader("Prefer", "return=representation")
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, table)
	if err != nil {
		return fmt.Errorf("supabase %s %s: %w", method, table, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}

	return nil
}
