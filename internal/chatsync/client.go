// Package chatsync is the client half of chat synchronization: an API
// client, persisted session identity, poll scheduling and the owner and
// customer views that keep local state in step with the server.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the storefront HTTP API. Safe for concurrent use.
type Client struct {
	http *resty.Client
}

// NewClient creates an API client. GET requests are retried on transport
// errors and 5xx answers; writes are sent exactly once.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{}).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c}
}

// SetToken sets the owner's bearer token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// ============================================================
// Auth
// ============================================================

func (c *Client) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================
// Owner
// ============================================================

func (c *Client) GetProfile(ctx context.Context) (*domain.BusinessProfile, error) {
	var out domain.BusinessProfile
	if err := c.do(ctx, http.MethodGet, "/v1/me/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveProfile(ctx context.Context, p *domain.BusinessProfile) (*domain.BusinessProfile, error) {
	var out domain.BusinessProfile
	if err := c.do(ctx, http.MethodPut, "/v1/me/profile", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var out domain.Dashboard
	if err := c.do(ctx, http.MethodGet, "/v1/me/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	if err := c.do(ctx, http.MethodGet, "/v1/me/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages fetches an owned session; the server marks it read.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	path := "/v1/me/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkRead(ctx context.Context, sessionID string) (int64, error) {
	var out domain.MarkReadResponse
	path := "/v1/me/sessions/" + url.PathEscape(sessionID) + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Marked, nil
}

func (c *Client) Reply(ctx context.Context, sessionID, text string) (*domain.Message, error) {
	var out domain.Message
	path := "/v1/me/sessions/" + url.PathEscape(sessionID) + "/reply"
	if err := c.do(ctx, http.MethodPost, path, &domain.ReplyRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================
// Customer (public)
// ============================================================

func (c *Client) PublicProfile(ctx context.Context, slugOrID string) (*domain.PublicProfile, error) {
	var out domain.PublicProfile
	if err := c.do(ctx, http.MethodGet, "/v1/public/profiles/"+url.PathEscape(slugOrID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchMessages(ctx context.Context, slugOrID, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, customerPath(slugOrID, sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Send(ctx context.Context, slugOrID, sessionID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	var out domain.Message
	if err := c.do(ctx, http.MethodPost, customerPath(slugOrID, sessionID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func customerPath(slugOrID, sessionID string) string {
	return "/v1/public/profiles/" + url.PathEscape(slugOrID) + "/sessions/" + url.PathEscape(sessionID) + "/messages"
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetResult(result)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*errorBody); ok && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}
