// Package apiclient performs authenticated requests against the hospital API.
//
// A Client only performs requests and reports failures as values. What a
// failure means for the visitor's session is decided by a FailureHandler
// composed in at construction.
package apiclient

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

	"github.com/target/ward-console/internal/observability/metrics"
	"github.com/target/ward-console/internal/ports"
)

const maxBodyBytes = 4 << 20

// DefaultTimeout bounds one round trip when no HTTP client is supplied.
const DefaultTimeout = 15 * time.Second

// FailureHandler reacts to a failed call. It must not change the returned error.
type FailureHandler interface {
	HandleFailure(ctx context.Context, err error)
}

// FailureHandlerFunc adapts a function to FailureHandler.
type FailureHandlerFunc func(ctx context.Context, err error)

func (f FailureHandlerFunc) HandleFailure(ctx context.Context, err error) { f(ctx, err) }

// Options configures a Client.
type Options struct {
	BaseURL          string
	Tokens           ports.TokenSource
	OnFailure        FailureHandler // optional
	HTTPClient       *http.Client   // optional, defaults to a 30s timeout client
	Metrics          metrics.Recorder
	Logger           *slog.Logger
	TokenPoll        TokenPoll
	ErrorMessageExpr string // JMESPath applied to JSON error bodies
}

// Client sends requests to the hospital API on behalf of one visitor.
// It holds no mutable state; every Call is an independent round trip.
type Client struct {
	base      *url.URL
	tokens    ports.TokenSource
	onFailure FailureHandler
	http      *http.Client
	metrics   metrics.Recorder
	logger    *slog.Logger
	poll      TokenPoll
	messages  messageExtractor
}

// Request describes one API call. Path is relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base URL %q must be absolute", opts.BaseURL)
	}
	msgs, err := newMessageExtractor(opts.ErrorMessageExpr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:      base,
		tokens:    opts.Tokens,
		onFailure: opts.OnFailure,
		http:      opts.HTTPClient,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		poll:      opts.TokenPoll.normalized(),
		messages:  msgs,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Call performs req and decodes a 2xx JSON response into out (when out is non-nil
// and the body is non-empty). Non-2xx responses are returned as *Error.
// Failures are passed to the FailureHandler before being returned unchanged.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	err := c.do(ctx, req, out)
	if err != nil && c.onFailure != nil {
		c.onFailure.HandleFailure(ctx, err)
	}
	return err
}

// Get is shorthand for a GET Call.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post is shorthand for a POST Call with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put is shorthand for a PUT Call with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch is shorthand for a PATCH Call with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete is shorthand for a DELETE Call.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Call(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

func (c *Client) do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	token, tokErr := AwaitToken(ctx, c.tokens, c.poll)
	if tokErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.metrics.TokenUnavailable()
		c.logger.DebugContext(ctx, "auth token unavailable, sending unauthenticated",
			"method", method, "path", req.Path, "attempts", c.poll.Attempts)
	}

	httpReq, err := c.newRequest(ctx, method, req)
	if err != nil {
		return err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.APIRequest(metrics.APICall{Method: method, Path: req.Path, Duration: time.Since(start), Err: err})
		return fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	call := metrics.APICall{Method: method, Path: req.Path, Status: resp.StatusCode, Duration: time.Since(start)}
	if readErr != nil {
		call.Err = readErr
		c.metrics.APIRequest(call)
		return fmt.Errorf("%s %s: read body: %w", method, req.Path, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Message:    c.messages.extract(body),
			Body:       body,
		}
		call.Err = apiErr
		c.metrics.APIRequest(call)
		return apiErr
	}
	c.metrics.APIRequest(call)

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		raw, marshalErr := json.Marshal(req.Body)
		if marshalErr != nil {
			return nil, fmt.Errorf("encode request body: %w", marshalErr)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse request path %q: %w", path, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return "", fmt.Errorf("request path %q must be relative", path)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	q := rel.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	// resp.Status is "418 I'm a teapot"
	if _, after, ok := strings.Cut(resp.Status, " "); ok {
		return after
	}
	return resp.Status
}
