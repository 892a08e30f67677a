// Package api talks to the BiasharaTrack REST backend. Client implements
// every collaborator port the checkout and session packages depend on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

const (
	DefaultTimeout = 15 * time.Second

	maxResponseBody = 1 << 20 // 1MB
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[reply]
	token   func() string
	unit    currency.Unit
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is still wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithBearer sets the source of the token sent on every request except verification.
func WithBearer(token func() string) Option {
	return func(c *Client) { c.token = token }
}

func WithCurrency(unit currency.Unit) Option {
	return func(c *Client) { c.unit = unit }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("url.Parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		token:   func() string { return "" },
		unit:    domain.DefaultCurrency,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = otelhttp.NewTransport(base)
	c.breaker = newBreaker(c.logger)

	return c, nil
}

// reply is a fully read response, so nothing escapes the breaker with an open body.
type reply struct {
	status int
	body   []byte
}

func newBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker[reply] {
	return gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        "biashara-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *domain.APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// do sends a JSON request and decodes a JSON response into out when out is not nil.
// bearer overrides the client token source when not empty.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, bearer string) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.token()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	rep, err := c.breaker.Execute(func() (reply, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return reply{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return reply{}, fmt.Errorf("io.ReadAll: %w", err)
		}

		rep := reply{status: resp.StatusCode, body: data}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return rep, decodeAPIError(rep)
		}
		return rep, nil
	})

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.Int("status", rep.status),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", requestID),
		zap.Error(err))

	if err != nil {
		return classify(ctx, err)
	}

	if out == nil || len(bytes.TrimSpace(rep.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return fmt.Errorf("%w: cannot decode %s response: %w", domain.ErrNetwork, path, err)
	}

	return nil
}

func decodeAPIError(rep reply) error {
	var e errorResponse
	msg := ""
	if json.Unmarshal(rep.body, &e) == nil {
		msg = e.Error
	}
	if msg == "" {
		msg = http.StatusText(rep.status)
	}
	return &domain.APIError{StatusCode: rep.status, Message: msg}
}

// classify maps transport failures onto the domain error taxonomy.
func classify(ctx context.Context, err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: backend unavailable: %w", domain.ErrNetwork, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}
