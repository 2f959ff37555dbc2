// Package client is a typed HTTP client for the vacation API. It owns the
// session lifecycle and runs the same policy and balance checks as the server
// before any write is sent. Types shared with the server are re-exported in
// types.go so callers outside this module can name them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/policy"
)

// DefaultTimeout bounds every call when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// Client talks to one API base URL, for example http://localhost:8080/api.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	policy  policy.Policy
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for transport failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTeamScope mirrors a server running with manager team scoping.
func WithTeamScope(enabled bool) Option {
	return func(c *Client) { c.policy.TeamScope = enabled }
}

// New creates a client. A nil session starts an in-memory one.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession(nil)
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		session:  session,
		logger:   zap.NewNop(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Session exposes the client's session.
func (c *Client) Session() *Session {
	return c.session
}

type call struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// public calls send no token, and a 401 from them is a credential
	// failure rather than an expired session.
	public bool
}

func (c *Client) do(ctx context.Context, rc call, out interface{}) error {
	target := c.baseURL + rc.path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	var payload io.Reader
	if rc.body != nil {
		data, err := json.Marshal(rc.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", rc.method, rc.path, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, target, payload)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", rc.method, rc.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !rc.public {
		token := c.session.Token()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api call failed", zap.String("method", rc.method), zap.String("path", rc.path), zap.Error(err))
		return &TransportError{Method: rc.method, Path: rc.path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", rc.method),
		zap.String("path", rc.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Method: rc.method, Path: rc.path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("undecodable error body", zap.String("path", rc.path), zap.Error(err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if rc.public {
			return &AuthorizationError{Code: body.Code, Message: body.Message}
		}
		if err := c.session.Clear(EndExpired); err != nil {
			c.logger.Warn("failed to clear expired session", zap.Error(err))
		}
		return ErrSessionExpired
	}

	apiErr := statusError(rc.method, rc.path, resp.StatusCode, body)
	var te *TransportError
	if errors.As(apiErr, &te) {
		c.logger.Warn("unexpected api status", zap.String("method", rc.method), zap.String("path", rc.path), zap.Int("status", resp.StatusCode), zap.String("code", body.Code))
	}
	return apiErr
}

// guard admits one in-flight mutation per (action, id).
func (c *Client) guard(action policy.Action, id string) (func(), error) {
	key := string(action) + ":" + id
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return nil, ErrInFlight
	}
	c.inflight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

func (c *Client) authorize(action policy.Action, res policy.Resource) error {
	p := c.session.Principal()
	if !p.Authenticated() {
		return ErrNotAuthenticated
	}
	if !c.policy.Can(p, action, res) {
		return &AuthorizationError{
			Code:    "FORBIDDEN",
			Message: fmt.Sprintf("role %s may not perform %s", p.Role, action),
			Local:   true,
		}
	}
	return nil
}

// Can reports whether the current principal may perform action on res. UIs use
// it to hide controls.
func (c *Client) Can(action policy.Action, res policy.Resource) bool {
	return c.authorize(action, res) == nil
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if size > 0 {
		q.Set("size", fmt.Sprint(size))
	}
	return q
}
