package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	maxResponseSize = 4 * 1024 * 1024 // 4 MiB

	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Doer is the subset of *http.Client the Client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues JSON requests against the task backend on behalf of a
// Session.
type Client struct {
	session Session
	http    Doer
	logger  *log.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets the logger used for per request debug records.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client bound to session.
func New(session Session, opts ...Option) *Client {
	c := &Client{
		session: session,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.StandardLogger()
	}
	return c
}

// Session returns the session the client was created with.
func (c *Client) Session() Session { return c.session }

// Send performs a single round trip. A non nil error means no response was
// received (encode failure, expired session, transport error or context
// cancellation); HTTP error statuses are returned as a Response.
func (c *Client) Send(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	if c.session.Expired(c.now()) {
		return nil, ErrSessionExpired
	}

	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.session.authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(HeaderRequestID, requestID)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	fields := log.Fields{
		"method":      method,
		"path":        path,
		"request_id":  requestID,
		"duration_ms": durationToMillis(time.Since(start)),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Debug("board.http.request")
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Debug("board.http.request")
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	fields["status"] = httpResp.StatusCode
	c.logger.WithFields(fields).Debug("board.http.request")

	if httpResp.StatusCode == http.StatusUnauthorized && c.session.OnUnauthorized != nil {
		c.session.OnUnauthorized()
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// GetJSON issues a GET and decodes a 2xx body into out. Other statuses are
// returned as *HTTPError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, nil)
}

// PostJSON issues a POST with a JSON body and decodes a 2xx body into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any, header http.Header) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, header)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, header http.Header) error {
	resp, err := c.Send(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	if err := CheckResponse(method, path, resp); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := sonic.ConfigStd.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	base := strings.TrimRight(c.session.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
