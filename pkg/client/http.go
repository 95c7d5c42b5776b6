package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/pkg/session"
)

const defaultTimeout = 30 * time.Second

// Config configures an HTTPClient.
type Config struct {
	// ServerURL is the base URL of the service, e.g. http://localhost:8080.
	ServerURL string
	// Session is the session cookie value from a previous login.
	Session string
	// HTTPClient defaults to a client with a 30s timeout. Its redirect
	// policy is replaced so that a redirect to the login page surfaces as an AuthError.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient implements Client against the JSON API.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	session string
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", cfg.ServerURL)
	}
	hc := &http.Client{Timeout: defaultTimeout}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		hc = &c
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{base: base, http: hc, session: cfg.Session, logger: logger}, nil
}

// Session returns the current session cookie value, empty when logged out.
func (c *HTTPClient) Session() string {
	return c.session
}

type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// Login exchanges the team password for a session cookie and returns its value.
func (c *HTTPClient) Login(ctx context.Context, password string) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/login", map[string]string{"password": password})
	if err != nil {
		return "", &StoreError{Op: "login", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return "", &AuthError{Message: readError(resp).Error}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StoreError{Op: "login", Err: statusError(resp)}
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			c.session = ck.Value
			return ck.Value, nil
		}
	}
	return "", &StoreError{Op: "login", Err: errors.New("no session cookie in response")}
}

// Logout clears the session on the server and locally.
func (c *HTTPClient) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return &StoreError{Op: "logout", Err: err}
	}
	defer resp.Body.Close()
	c.session = ""
	if resp.StatusCode != http.StatusOK {
		return &StoreError{Op: "logout", Err: statusError(resp)}
	}
	return nil
}

func (c *HTTPClient) List(ctx context.Context, from, to time.Time) ([]model.Post, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339Nano))
	q.Set("to", to.Format(time.RFC3339Nano))
	var posts []model.Post
	if err := c.do(ctx, "list", http.MethodGet, "/api/posts?"+q.Encode(), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *HTTPClient) Create(ctx context.Context, form model.PostForm) (model.Post, error) {
	// the server builds the datetime in its own location; this only validates
	if _, err := form.Parse(time.UTC); err != nil {
		return model.Post{}, err
	}
	var post model.Post
	if err := c.do(ctx, "create", http.MethodPost, "/api/posts", form, &post); err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, patch model.PostPatch) (model.Post, error) {
	if patch.IsEmpty() {
		return model.Post{}, nil
	}
	if err := patch.Validate(); err != nil {
		return model.Post{}, err
	}
	var post model.Post
	if err := c.do(ctx, "update", http.MethodPatch, "/api/posts/"+url.PathEscape(id), patch, &post); err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) Remove(ctx context.Context, id string) error {
	return c.do(ctx, "remove", http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: c.session})
	}
	c.logger.DebugContext(ctx, "request", "method", method, "path", path)
	return c.http.Do(req)
}

// do sends the request and decodes a successful response into out.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Message: readError(resp).Error}
	case isLoginRedirect(resp):
		return &AuthError{}
	case resp.StatusCode == http.StatusBadRequest:
		e := readError(resp)
		if len(e.Fields) > 0 {
			return &model.ValidationError{Fields: e.Fields}
		}
		return &StoreError{Op: op, Err: &StatusError{Code: resp.StatusCode, Message: e.Error}}
	case resp.StatusCode == http.StatusNotFound:
		return &StoreError{Op: op, Err: ErrNotFound}
	case resp.StatusCode >= 300:
		return &StoreError{Op: op, Err: statusError(resp)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return false
	}
	loc, err := resp.Location()
	return err == nil && loc.Path == "/login"
}

func readError(resp *http.Response) apiError {
	var e apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
	return e
}

func statusError(resp *http.Response) error {
	return &StatusError{Code: resp.StatusCode, Message: readError(resp).Error}
}
