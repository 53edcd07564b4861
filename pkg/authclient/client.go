// Package authclient is the client half of the carbook session protocol.
// It owns the access-token cache, the refresh cookie (via the HTTP
// client's cookie jar) and the refresh-and-retry flow, so callers issue
// authorized requests without ever touching token lifecycle.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLoginFailed wraps the server's reason for a rejected login.
	ErrLoginFailed = errors.New("login failed")
	// ErrSessionExpired means the silent refresh itself failed; callers
	// are expected to route the user back to the login screen.
	ErrSessionExpired = errors.New("session expired")
)

// Profile mirrors the GET /users/me response.
type Profile struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client is the session manager. The token slot is a single shared
// value guarded by a mutex; updates are last-writer-wins, which at
// worst costs one extra refresh-retry cycle under concurrency.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore

	mu          sync.RWMutex
	accessToken string
	profile     *Profile
}

func New(baseURL string, store TokenStore) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = &MemoryStore{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Login exchanges credentials for a token pair. The refresh token lands
// in the cookie jar, the access token in both caches, and the profile
// is fetched and cached.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth", body, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrLoginFailed, serverMessage(resp))
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.AccessToken == "" {
		return fmt.Errorf("%w: malformed response", ErrLoginFailed)
	}

	c.setToken(data.AccessToken)

	return c.fetchProfile(ctx)
}

// Logout clears the session. The server call is best effort; local
// state is dropped even when the network is down.
func (c *Client) Logout(ctx context.Context) error {
	if resp, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, ""); err == nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.accessToken = ""
	c.profile = nil
	c.mu.Unlock()

	return c.store.Clear()
}

// Refresh asks for a new access token; the refresh cookie travels
// automatically. A failure of any kind is treated as an expired
// session (fail closed).
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/auth/refresh", nil, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: refresh returned %d", ErrSessionExpired, resp.StatusCode)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.AccessToken == "" {
		return fmt.Errorf("%w: malformed refresh response", ErrSessionExpired)
	}

	c.setToken(data.AccessToken)
	return nil
}

// Bootstrap attempts a silent refresh on application start. A false
// result is the normal state of a fresh or logged-out install, not an
// error.
func (c *Client) Bootstrap(ctx context.Context) (bool, error) {
	if err := c.Refresh(ctx); err != nil {
		return false, nil
	}
	if err := c.fetchProfile(ctx); err != nil {
		return false, nil
	}
	return true, nil
}

// CurrentUser returns the cached profile, or nil when unauthenticated.
func (c *Client) CurrentUser() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// Token exposes the current in-process access token. Mostly for tests.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
	// Durable copy is written synchronously after each change; a failed
	// write only costs the session after a restart.
	_ = c.store.Save(token)
}

func (c *Client) fetchProfile(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch profile: %s", serverMessage(resp))
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	c.mu.Lock()
	c.profile = &p
	c.mu.Unlock()
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.httpClient.Do(req)
}

func serverMessage(resp *http.Response) string {
	var data struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err == nil && data.Message != "" {
		return data.Message
	}
	return resp.Status
}
