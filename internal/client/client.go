// Package client implements the authenticated HTTP client used by every
// Aido API call. Requests run through a fixed middleware pipeline:
// request-id, authorize, transport send, refresh-retry. A 401 triggers one
// coordinated token refresh shared by all requests failing concurrently,
// followed by a single retry of the original request.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aidoapp/aido-go/internal/auth"
	"github.com/aidoapp/aido-go/internal/metrics"
	"github.com/aidoapp/aido-go/internal/secrets"
)

// DefaultTimeout bounds a single network attempt when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 10 * time.Second

// HTTPDoer is the underlying transport
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is a replayable snapshot of an outbound request: everything
// needed to issue it, and to re-issue it unchanged after a token refresh.
type Request struct {
	Method string
	Path   string // relative to the client's base URL
	Header http.Header
	Body   []byte // optional JSON payload
}

// Client is the authenticated HTTP client. It is a plain struct owned by
// the composition root; see default.go for the cached process-wide
// instance used by the CLI.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	store      secrets.Store
	coord      *auth.Coordinator
	timeout    time.Duration
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying transport
func WithHTTPClient(httpClient HTTPDoer) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client against the given base URL, wiring the refresh
// coordinator around the same secret store and transport.
func New(baseURL string, store secrets.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		store:      store,
		timeout:    DefaultTimeout,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	refresher := auth.NewRefresher(c.baseURL, c.httpClient, store, c.logger)
	c.coord = auth.NewCoordinator(refresher, c.logger)
	return c
}

// Do sends the request through the pipeline and returns the final
// response. A 401 is recovered transparently when the coordinated refresh
// yields a new access token; otherwise the original 401 response is
// returned unchanged. The caller owns the response body.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	requestID := uuid.NewString()

	accessToken, err := c.store.Get(ctx, secrets.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := c.send(ctx, req, requestID, accessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Snapshot the 401 so it can be handed back untouched if recovery
	// fails. The body must be drained before the connection is reused.
	originalBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		originalBody = nil
	}
	original := func() *http.Response {
		resp.Body = io.NopCloser(bytes.NewReader(originalBody))
		return resp
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Msg("Request unauthorized, attempting coordinated refresh")

	if err := c.coord.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Refresh failure surfaces as the original 401, never as the
		// refresh error; the caller decides to re-login.
		c.logger.Warn().
			Str("request_id", requestID).
			Err(err).
			Msg("Coordinated refresh failed, returning original 401")
		return original(), nil
	}

	newToken, err := c.store.Get(ctx, secrets.KeyAccessToken)
	if err != nil || newToken == "" {
		return original(), nil
	}

	metrics.RequestRetries.Inc()
	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Msg("Re-issuing request with refreshed token")

	retry, err := c.send(ctx, req, requestID, newToken)
	if err != nil {
		// RetryFailed: an ordinary request failure, no further refresh
		return nil, err
	}
	return retry, nil
}

// send is one transport attempt: build the http.Request from the snapshot,
// attach request ID and bearer token, and send it. An empty accessToken
// sends the request unauthenticated.
func (c *Client) send(ctx context.Context, req *Request, requestID, accessToken string) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, err
	}
	// the timeout context must survive until the body is consumed
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the per-attempt timeout context when the response
// body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
