// Package downloader performs outbound HTTP requests with a bounded retry
// policy. Only transport failures are retried; any HTTP response, whatever
// its status, is returned to the caller as is.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// ErrExhausted is wrapped by the error returned once every attempt of a
// request failed at the transport level.
var ErrExhausted = errors.New("download retries exhausted")

// DefaultUserAgent is a desktop browser signature; the stop pages refuse
// some non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Config controls timeouts and retries.
type Config struct {
	UserAgent string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Attempts is the total number of tries per request, at least 1.
	Attempts int
	// Interval is the constant pause between attempts.
	Interval time.Duration
}

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Downloader issues GET and DELETE requests.
type Downloader struct {
	client   *resty.Client
	attempts int
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Downloader) { d.client.SetTransport(rt) }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// New creates a Downloader.
func New(cfg Config, opts ...Option) *Downloader {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	client := resty.New().
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(cfg.Timeout)

	d := &Downloader{
		client:   client,
		attempts: cfg.Attempts,
		interval: cfg.Interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Get fetches url.
func (d *Downloader) Get(ctx context.Context, url string) (*Response, error) {
	return d.do(ctx, http.MethodGet, url, nil)
}

// Delete sends a DELETE to url with form as an urlencoded body.
func (d *Downloader) Delete(ctx context.Context, url string, form map[string]string) (*Response, error) {
	return d.do(ctx, http.MethodDelete, url, form)
}

func (d *Downloader) do(ctx context.Context, method, url string, form map[string]string) (*Response, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.interval), uint64(d.attempts-1)),
		ctx,
	)

	attempt := 0
	resp, err := backoff.RetryNotifyWithData(
		func() (*Response, error) {
			attempt++
			req := d.client.R().SetContext(ctx)
			if form != nil {
				req.SetFormData(form)
			}

			res, err := req.Execute(method, url)
			if err != nil {
				if ctx.Err() != nil {
					return nil, backoff.Permanent(ctx.Err())
				}
				return nil, err
			}

			return &Response{
				StatusCode: res.StatusCode(),
				Header:     res.Header(),
				Body:       res.Body(),
			}, nil
		},
		policy,
		func(err error, wait time.Duration) {
			d.logger.Warn("request failed, retrying",
				"method", method,
				"url", url,
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		},
	)
	if err == nil {
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, ctxErr)
	}
	return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrExhausted, method, url, attempt, err)
}
