// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Executor defaults.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 2
	DefaultRetryBase     = 2 * time.Second

	maxBodyBytes = 1 << 20
)

var tracer = otel.Tracer("github.com/edusphere/portal/internal/request")

// Config holds executor settings.
type Config struct {
	// BaseURL is the identity service root, e.g. "https://portal.example.edu/api".
	BaseURL string

	// Timeout bounds each attempt (default: 10s).
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt (default: 2).
	// Use a negative value to disable retries.
	RetryAttempts int

	// RetryBase is the delay before the first retry; each later retry
	// doubles it (default: 2s).
	RetryBase time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// Request describes one call to the identity service.
type Request struct {
	Method string
	Path   string
	// Body is JSON-encoded when non-nil.
	Body any
	// Token is sent as a bearer credential when non-empty.
	Token string
	// Idempotent allows retrying methods that are not idempotent by default.
	Idempotent bool
	// Endpoint labels metrics and logs; defaults to "METHOD path".
	Endpoint string
}

func (r Request) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return r.Method + " " + r.Path
}

func (r Request) idempotent() bool {
	if r.Idempotent {
		return true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Response is a successful exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. A missing or malformed body is a
// KindServiceUnavailable failure.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return &Error{
			Kind:   KindServiceUnavailable,
			Status: r.Status,
			Err:    errors.New("empty response body"),
		}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Kind:   KindServiceUnavailable,
			Status: r.Status,
			Err:    oops.Code("REQUEST_DECODE_FAILED").Wrap(err),
		}
	}
	return nil
}

// BackoffFactory creates the backoff schedule for one Do call.
type BackoffFactory func() retry.Backoff

// DefaultBackoff waits base, 2*base, 4*base... between attempts and stops
// after attempts retries.
func DefaultBackoff(attempts uint64, base time.Duration) BackoffFactory {
	return func() retry.Backoff {
		return retry.WithMaxRetries(attempts, retry.NewExponential(base))
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the HTTP client. The client's own timeout, if any,
// applies in addition to the per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBackoff overrides the retry schedule.
func WithBackoff(factory BackoffFactory) Option {
	return func(e *Executor) {
		if factory != nil {
			e.newBackoff = factory
		}
	}
}

// Executor issues requests with timeout, classification and retry.
type Executor struct {
	baseURL    *url.URL
	client     *http.Client
	timeout    time.Duration
	newBackoff BackoffFactory
	logger     *slog.Logger
	userAgent  string
}

// NewExecutor creates an Executor for the service at cfg.BaseURL.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	var attempts uint64
	switch {
	case cfg.RetryAttempts == 0:
		attempts = DefaultRetryAttempts
	case cfg.RetryAttempts > 0:
		attempts = uint64(cfg.RetryAttempts)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "edusphere-portal"
	}

	// Cookie transport: the service may authenticate via cookie, bearer, or both.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, oops.Code("REQUEST_CONFIG_INVALID").
			With("operation", "create cookie jar").
			Wrap(err)
	}

	e := &Executor{
		baseURL:    base,
		client:     &http.Client{Jar: jar},
		timeout:    cfg.Timeout,
		newBackoff: DefaultBackoff(attempts, cfg.RetryBase),
		logger:     slog.Default(),
		userAgent:  cfg.UserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, oops.Code("REQUEST_CONFIG_INVALID").Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, oops.Code("REQUEST_CONFIG_INVALID").
			With("base_url", raw).
			Wrap(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, oops.Code("REQUEST_CONFIG_INVALID").
			With("base_url", raw).
			Errorf("base URL must be an absolute http(s) URL")
	}
	return u, nil
}

// BaseURL returns the service root the executor talks to.
func (e *Executor) BaseURL() *url.URL {
	u := *e.baseURL
	return &u
}

// Do executes req. On failure the error is an *Error unless the caller's
// context ended first, in which case it wraps the context error.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" || req.Path == "" {
		return nil, oops.Code("REQUEST_INVALID").
			With("method", req.Method).
			With("path", req.Path).
			Errorf("request method and path are required")
	}

	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, oops.Code("REQUEST_ENCODE_FAILED").
				With("endpoint", req.endpoint()).
				Wrap(err)
		}
		payload = data
	}

	endpoint := req.endpoint()
	target := e.baseURL.JoinPath(strings.TrimPrefix(req.Path, "/")).String()
	requestID := ulid.Make().String()

	ctx, span := tracer.Start(ctx, "portal.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("portal.endpoint", endpoint),
			attribute.String("portal.request_id", requestID),
		),
	)
	defer span.End()

	start := time.Now()
	attempts := 0
	var resp *Response

	err := retry.Do(ctx, e.newBackoff(), func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			RecordRetry(endpoint)
		}

		r, attemptErr := e.attempt(ctx, req, target, payload, requestID)
		if attemptErr == nil {
			resp = r
			return nil
		}

		rerr, ok := AsError(attemptErr)
		if !ok {
			return attemptErr
		}
		rerr.Attempts = attempts
		if rerr.Kind.Retryable() && (req.idempotent() || rerr.unsent) {
			e.logger.Debug("request attempt failed, will retry",
				"endpoint", endpoint,
				"request_id", requestID,
				"attempt", attempts,
				"kind", rerr.Kind,
				"status", rerr.Status,
			)
			return retry.RetryableError(rerr)
		}
		return rerr
	})

	duration := time.Since(start)
	if err != nil {
		outcome := "cancelled"
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		}
		RecordRequest(endpoint, outcome, duration)
		span.SetStatus(codes.Error, outcome)
		e.logger.Warn("request failed",
			"method", req.Method,
			"endpoint", endpoint,
			"request_id", requestID,
			"outcome", outcome,
			"attempts", attempts,
			"duration", duration,
		)
		return nil, err
	}

	RecordRequest(endpoint, "ok", duration)
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	e.logger.Debug("request completed",
		"method", req.Method,
		"endpoint", endpoint,
		"request_id", requestID,
		"status", resp.Status,
		"attempts", attempts,
		"duration", duration,
	)
	return resp, nil
}

func (e *Executor) attempt(ctx context.Context, req Request, target string, payload []byte, requestID string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, body)
	if err != nil {
		return nil, oops.Code("REQUEST_BUILD_FAILED").
			With("endpoint", req.endpoint()).
			Wrap(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			e.logger.Debug("error closing response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}

	return classifyResponse(httpResp.StatusCode, httpResp.Header, data)
}

// classifyTransport maps a failure without a usable response. A failure
// caused by the caller's own context is returned unclassified.
func classifyTransport(parent, attemptCtx context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return oops.Code("REQUEST_CANCELLED").Wrap(parentErr)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err, unsent: isDialError(err)}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func classifyResponse(status int, header http.Header, data []byte) (*Response, error) {
	switch {
	case status == http.StatusUnauthorized:
		msg, fields := parseErrorBody(data)
		return nil, &Error{Kind: KindAuthRequired, Status: status, Message: msg, Fields: fields}
	case status >= 400 && status < 500:
		msg, fields := parseErrorBody(data)
		return nil, &Error{Kind: KindValidation, Status: status, Message: msg, Fields: fields}
	case status >= 500:
		msg, _ := parseErrorBody(data)
		return nil, &Error{Kind: KindServiceUnavailable, Status: status, Message: msg}
	case status < 200 || status >= 300:
		return nil, &Error{
			Kind:   KindServiceUnavailable,
			Status: status,
			Err:    errors.New("unexpected response status"),
		}
	}

	if len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
		return nil, &Error{
			Kind:   KindServiceUnavailable,
			Status: status,
			Err:    errors.New("malformed response body"),
		}
	}
	return &Response{Status: status, Header: header, Body: data}, nil
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// parseErrorBody extracts a message and field errors from a
// {"message": ..., "errors": {...}} body. Anything else yields nothing.
func parseErrorBody(data []byte) (string, map[string]string) {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "", nil
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return msg, parseFieldErrors(body.Errors)
}

func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat
	}
	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err == nil && len(lists) > 0 {
		fields := make(map[string]string, len(lists))
		for k, v := range lists {
			fields[k] = strings.Join(v, "; ")
		}
		return fields
	}
	return nil
}
