// Package gateway is the HTTP client for the studio backend API.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

const (
	defaultGetTimeout  = 10 * time.Second
	defaultPostTimeout = 15 * time.Second
	maxResponseBytes   = 4 << 20
	userAgent          = "studio-booking-bot/1.0"
)

// Config controls how the backend client behaves.
type Config struct {
	BaseURLs          []string
	Username          string
	Password          string
	GetTimeout        time.Duration
	PostTimeout       time.Duration
	MediaBaseURL      string
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

type endpoint struct {
	baseURL string
	breaker *apperrors.CircuitBreaker
}

// Client talks to the backend through an ordered list of candidate base URLs.
// Each request goes to the first candidate that answers.
type Client struct {
	endpoints   []*endpoint
	username    string
	password    string
	getTimeout  time.Duration
	postTimeout time.Duration
	mediaBase   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	log         *slog.Logger
}

// New creates a configured Client.
func New(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	endpoints := make([]*endpoint, 0, len(cfg.BaseURLs))
	for _, raw := range cfg.BaseURLs {
		base := strings.TrimRight(strings.TrimSpace(raw), "/")
		if base == "" {
			continue
		}
		endpoints = append(endpoints, &endpoint{
			baseURL: base,
			breaker: apperrors.NewCircuitBreaker(base, apperrors.WithStateChangeHook(func(name string, from, to apperrors.State) {
				log.Warn("backend circuit state changed",
					slog.String("endpoint", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}), apperrors.WithFailureFilter(unhealthy)),
		})
	}
	if len(endpoints) == 0 {
		return nil, errors.New("gateway: at least one backend URL is required")
	}

	getTimeout := cfg.GetTimeout
	if getTimeout <= 0 {
		getTimeout = defaultGetTimeout
	}
	postTimeout := cfg.PostTimeout
	if postTimeout <= 0 {
		postTimeout = defaultPostTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	mediaBase := strings.TrimRight(strings.TrimSpace(cfg.MediaBaseURL), "/")
	if mediaBase == "" {
		mediaBase = endpoints[0].baseURL
	}

	return &Client{
		endpoints:   endpoints,
		username:    cfg.Username,
		password:    cfg.Password,
		getTimeout:  getTimeout,
		postTimeout: postTimeout,
		mediaBase:   mediaBase,
		httpClient:  httpClient,
		limiter:     limiter,
		log:         log,
	}, nil
}

// AbsoluteURL turns a backend-relative media path into a full URL.
func (c *Client) AbsoluteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return c.mediaBase + raw
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.invoke(ctx, http.MethodGet, path, nil, c.getTimeout)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.invoke(ctx, http.MethodPost, path, body, c.postTimeout)
}

// invoke sends the request to each endpoint in order. GET requests move on after any
// failure. POST requests move on only when the request never reached the server, so a
// booking is never submitted twice.
func (c *Client) invoke(ctx context.Context, method, path string, body []byte, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewBackendError(path, err)
	}

	var errs []error
	for _, ep := range c.endpoints {
		start := time.Now()

		var data []byte
		err := ep.breaker.Call(func() error {
			var callErr error
			data, callErr = c.send(ctx, ep.baseURL, method, path, body, timeout)
			return callErr
		})

		metrics.RecordBackendRequest(method, path, outcome(err), time.Since(start))
		if err == nil {
			return data, nil
		}

		c.log.WarnContext(ctx, "backend request failed",
			slog.String("method", method),
			slog.String("endpoint", ep.baseURL),
			slog.String("path", path),
			slog.Any("error", err),
		)
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
		if method != http.MethodGet && !notDelivered(err) {
			break
		}
	}

	return nil, apperrors.NewBackendError(path, errors.Join(errs...))
}

func (c *Client) send(ctx context.Context, baseURL, method, path string, body []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	url := baseURL + path
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: snippet}
	}

	return data, nil
}

// unhealthy reports whether err says something about the endpoint itself. A 4xx
// answer means the endpoint is up and rejected the request.
func unhealthy(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	return true
}

// notDelivered reports whether err guarantees that the server never saw the request.
func notDelivered(err error) bool {
	if apperrors.IsBreakerRejection(err) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func outcome(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsBreakerRejection(err):
		return "circuit_open"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
