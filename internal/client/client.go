// Package client is the Go counterpart of the AgriSage web app: it signs in, calls the
// AI functions and reads the farmer's records through the REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

var ErrNotAuthenticated = errors.New("not signed in")

const (
	RouteLanding   = "/"
	RouteDashboard = "/dashboard"
)

// APIError is any non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// SessionFile, when set, keeps the session across runs.
	SessionFile string
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	sessionFile string
	session     *core.Session
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{baseURL: baseURL, httpClient: hc, sessionFile: opts.SessionFile}
	if opts.SessionFile != "" {
		s, err := loadSession(opts.SessionFile)
		if err != nil {
			return nil, err
		}
		if s != nil && s.ExpiresAt.After(time.Now()) {
			c.session = s
		}
	}
	return c, nil
}

func (c *Client) Session() *core.Session { return c.session }

func (c *Client) SignedIn() bool { return c.session != nil && c.session.AccessToken != "" }

// Route is the view the app shows for the current session state.
func (c *Client) Route() string {
	if c.SignedIn() {
		return RouteDashboard
	}
	return RouteLanding
}

func (c *Client) SignUp(ctx context.Context, req core.SignUpRequest) (*core.Session, error) {
	var s core.Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", false, req, &s); err != nil {
		return nil, err
	}
	return &s, c.setSession(&s)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*core.Session, error) {
	var s core.Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", false, core.Credentials{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, c.setSession(&s)
}

// SignOut revokes the token server-side and always clears the local session.
func (c *Client) SignOut(ctx context.Context) error {
	if !c.SignedIn() {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", true, nil, nil)
	if clearErr := c.setSession(nil); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) setSession(s *core.Session) error {
	c.session = s
	if c.sessionFile == "" {
		return nil
	}
	if s == nil {
		return clearSession(c.sessionFile)
	}
	return saveSession(c.sessionFile, s)
}

func (c *Client) Profile(ctx context.Context) (*store.Profile, error) {
	var p store.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/profile", true, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, u core.ProfileUpdate) (*store.Profile, error) {
	var p store.Profile
	if err := c.doJSON(ctx, http.MethodPut, "/api/profile", true, u, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Chats(ctx context.Context) ([]store.ChatHistory, error) {
	var out []store.ChatHistory
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Dashboard(ctx context.Context) (*core.Dashboard, error) {
	var d core.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard", true, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, authed bool, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if !c.SignedIn() {
			return nil, ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	}
	return req, nil
}

// send performs the request and turns non-2xx answers into an *APIError.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
	}
	return nil, apiErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, authed bool, body, out any) error {
	req, err := c.newRequest(ctx, method, path, authed, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
