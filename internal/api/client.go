// Package api is the authenticated REST client for the advisory backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
	"github.com/lumen-advisory/advisory-chat/pkg/metrics"
)

// refreshLeeway is how close to expiry the access token may get before a
// request triggers a refresh.
const refreshLeeway = 30 * time.Second

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api request failed with status %d", e.Status)
}

// Client talks to the advisory REST API. It owns the token pair and
// refreshes the access token transparently before it expires.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger

	mu      sync.Mutex
	access  string
	refresh string
}

// New creates an API client against the given base URL.
func New(baseURL string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  log,
	}
}

// AccessToken returns the current access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// SetTokens installs a token pair, e.g. one restored from durable state.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access = access
	c.refresh = refresh
	c.mu.Unlock()
}

// Login authenticates and installs the returned token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var resp model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login/", model.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}

	c.SetTokens(resp.Access, resp.Refresh)
	return resp.User, nil
}

// Logout invalidates the refresh token server-side and clears the pair
// locally. A server failure still clears local tokens; the next session
// must not reuse them.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.access = ""
	c.refresh = ""
	c.mu.Unlock()

	if refresh == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/auth/logout/", model.RefreshRequest{Refresh: refresh}, nil, false)
}

// ListWorkspaces fetches all workspaces for the current user.
func (c *Client) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var out []model.Workspace
	if err := c.do(ctx, http.MethodGet, "/api/workspaces/", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWorkspace creates a workspace.
func (c *Client) CreateWorkspace(ctx context.Context, req model.CreateWorkspaceRequest) (*model.Workspace, error) {
	var out model.Workspace
	if err := c.do(ctx, http.MethodPost, "/api/workspaces/", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWorkspace deletes a workspace by id.
func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/workspaces/"+url.PathEscape(id)+"/", nil, nil, true)
}

// ListConversations fetches conversations, optionally scoped to a
// workspace.
func (c *Client) ListConversations(ctx context.Context, workspaceID string) ([]model.Conversation, error) {
	path := "/api/conversations/"
	if workspaceID != "" {
		path += "?workspace=" + url.QueryEscape(workspaceID)
	}
	var out []model.Conversation
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a conversation.
func (c *Client) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	var out model.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations/", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes a conversation by id.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id)+"/", nil, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		tok, err := c.freshToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordAPIRequest(method, trimQuery(path), strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// freshToken returns the access token, refreshing it first when it is
// missing a comfortable margin to expiry.
func (c *Client) freshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	access := c.access
	refresh := c.refresh
	c.mu.Unlock()

	if access == "" {
		return "", &Error{Status: http.StatusUnauthorized, Message: "not authenticated"}
	}
	if !tokenNeedsRefresh(access) || refresh == "" {
		return access, nil
	}

	var resp model.RefreshResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/token/refresh/", model.RefreshRequest{Refresh: refresh}, &resp, false)
	if err != nil {
		c.logger.Warn("token refresh failed, using current access token", zap.Error(err))
		return access, nil
	}

	c.mu.Lock()
	c.access = resp.Access
	access = c.access
	c.mu.Unlock()
	return access, nil
}

// tokenNeedsRefresh inspects the token's exp claim without verifying the
// signature; verification is the server's job.
func tokenNeedsRefresh(access string) bool {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(access, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return time.Until(claims.ExpiresAt.Time) < refreshLeeway
}

func trimQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
