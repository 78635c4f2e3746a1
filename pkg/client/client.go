// Package client is the Go SDK for the photo feed API: auth sessions, the
// profiles/posts/likes tables, the like RPCs, object storage and the realtime
// auth-event socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// refreshMargin is how long before expiry GetSession refreshes the access token.
const refreshMargin = 30 * time.Second

// Client talks to one API deployment. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
	storage SessionStorage
	now     func() time.Time

	mu        sync.RWMutex
	session   *Session
	listeners map[int]func(AuthEvent)
	nextID    int

	// serializes token refreshes so a refresh token is rotated once
	refreshMu sync.Mutex

	rtMu     sync.Mutex
	realtime *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithSessionStorage persists the session across process restarts.
func WithSessionStorage(s SessionStorage) Option {
	return func(c *Client) { c.storage = s }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the API at baseURL. A session found in the
// configured SessionStorage is restored.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
			SetHeader("Accept", "application/json").
			SetTimeout(15 * time.Second),
		now:       time.Now,
		listeners: make(map[int]func(AuthEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.storage != nil {
		sess, err := c.storage.Load()
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		c.session = sess
	}
	return c, nil
}

// Close ends the realtime subscription, if any.
func (c *Client) Close() error {
	c.closeRealtime()
	return nil
}

// errorBody is the API error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

// authed returns a request carrying the current access token, refreshing it first when needed.
// Without a session the request goes out anonymously and the API decides.
func (c *Client) authed(ctx context.Context) (*resty.Request, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	req := c.request(ctx)
	if sess != nil {
		req.SetAuthToken(sess.AccessToken)
	}
	return req, nil
}

// check turns a transport failure or non-2xx response into an error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// Errors matched by errors.Is against an *APIError.
var (
	ErrNoRows       = errors.New("no rows returned")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("invalid request")
	ErrRateLimited  = errors.New("rate limited")
)

// ErrNoSession is returned by calls that need a signed-in user when there is none.
var ErrNoSession = errors.New("no active session")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Is matches the package sentinels by status and code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNoRows:
		return e.Code == "NO_ROWS"
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}
