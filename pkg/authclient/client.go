package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrSessionExpired is returned once a request was rejected, the refresh
// attempt failed and the stored tokens were dropped. Callers should send the
// user back to the login form.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non 2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type User struct {
	ID       uint    `json:"id"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}

type LoginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

type RefreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// Client talks to the issue logger API and keeps the session tokens. A
// request rejected with 401 is retried exactly once after a refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

func (c *Client) setAccess(access string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, http.MethodPost, "/auth/login", body, "", &out); err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Refresh trades the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh := c.Tokens()
	if refresh == "" {
		return ErrSessionExpired
	}

	var out RefreshResponse
	body := map[string]string{"refreshToken": refresh}
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", body, "", &out); err != nil {
		return err
	}
	c.setAccess(out.AccessToken)
	return nil
}

// Logout revokes the refresh token on the server and forgets both tokens,
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	access, refresh := c.Tokens()
	defer c.SetTokens("", "")

	body := map[string]string{"refreshToken": refresh}
	return c.send(ctx, http.MethodPost, "/auth/logout", body, access, nil)
}

// Do sends an authenticated request and decodes the JSON answer into out
// when out is not nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	access, _ := c.Tokens()
	err := c.send(ctx, method, path, in, access, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	if err := c.Refresh(ctx); err != nil {
		c.SetTokens("", "")
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	access, _ = c.Tokens()
	err = c.send(ctx, method, path, in, access, out)
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.SetTokens("", "")
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in any, bearer string, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Code = e.Error, e.Code
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
