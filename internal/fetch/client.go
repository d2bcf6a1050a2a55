// Package fetch implements the Rate-Limited HTTP Fetcher: a small
// capability, shared by both provider Source Adapters, that performs GET
// requests against a configured provider profile — fixed User-Agent,
// inter-request pacing, 429/404/5xx disposition, and streaming body
// delivery for long-lived responses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fasthttp"
)

// Profile is a provider's scheduling policy, reproduced from the spec's
// provider-profile table.
type Profile struct {
	Name              string
	UserAgent         string
	InterRequestDelay time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	FixedBackoff      bool // Lichess: a fixed wait; Chess.com: exponential doubling
	MaxRetries        int
	RequestTimeout    time.Duration
	Accept            string
}

const userAgent = "ChessAnalyticsIngest/1.0 (+https://github.com/chessanalytics/ingest-core)"

// ChessComProfile is the scheduling policy for api.chess.com.
var ChessComProfile = Profile{
	Name:              "chess.com",
	UserAgent:         userAgent,
	InterRequestDelay: 500 * time.Millisecond,
	InitialBackoff:    2000 * time.Millisecond,
	MaxBackoff:        60000 * time.Millisecond,
	FixedBackoff:      false,
	MaxRetries:        3,
	RequestTimeout:    30 * time.Second,
}

// LichessProfile is the scheduling policy for lichess.org.
var LichessProfile = Profile{
	Name:              "lichess",
	UserAgent:         userAgent,
	InterRequestDelay: 0,
	InitialBackoff:    60000 * time.Millisecond,
	MaxBackoff:        60000 * time.Millisecond,
	FixedBackoff:      true,
	MaxRetries:        3,
	RequestTimeout:    10 * time.Minute,
	Accept:            "application/x-chess-pgn",
}

// NotFoundError is raised on a 404 response; it carries the requested
// URL for the caller to build a user-visible "not found" message.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("resource not found: %s", e.URL) }

// RateLimitedError is raised when retries are exhausted on repeated 429s.
type RateLimitedError struct {
	Provider string
	Retries  int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s after %d retries", e.Provider, e.Retries)
}

// ProviderError is raised for any status other than 200, 429 and 404.
type ProviderError struct {
	Provider   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error: HTTP %d", e.Provider, e.StatusCode)
}

// Client performs rate-limited GETs against one or more provider
// profiles. Grounded on the teacher's internal/irisfast client: the
// same Option-constructor, computeDeadline and sleepWithContext shapes,
// generalized here from one fixed policy to the per-provider Profile
// table.
type Client struct {
	http  *fasthttp.Client
	pacer Pacer
}

// Option configures a Client.
type Option func(*Client)

// WithPacer installs a Pacer shared across instances (e.g. a Redis-
// backed one) instead of the default in-process sleeper.
func WithPacer(p Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// NewClient builds a Client. Connection sizing mirrors the teacher's
// defaults for its fasthttp client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:  &fasthttp.Client{MaxConnsPerHost: 64},
		pacer: NewLocalPacer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is one sequence of requests against a single provider within
// one Job; it tracks whether the inter-request delay applies (it is
// skipped before the first request in a session). The 429 backoff
// starts again from the profile's InitialBackoff on every fetch.
type Session struct {
	client  *Client
	profile Profile
	first   bool
}

// NewSession starts a request session against profile.
func (c *Client) NewSession(profile Profile) *Session {
	return &Session{client: c, profile: profile, first: true}
}

// FetchText performs a GET and returns the full response body as a
// string, after applying the session's pacing and retry policy.
func (s *Session) FetchText(ctx context.Context, url string) (string, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(data), nil
}

// FetchStream performs a GET and returns the response body as a reader
// suitable for incremental line-oriented parsing, without buffering the
// whole response. The caller must Close it.
func (s *Session) FetchStream(ctx context.Context, url string) (io.ReadCloser, error) {
	return s.fetch(ctx, url)
}

func (s *Session) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if !s.first {
		if err := s.client.pacer.Wait(ctx, s.profile.Name, s.profile.InterRequestDelay); err != nil {
			return nil, err
		}
	}
	s.first = false

	backoff := s.profile.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < s.profile.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
			if !s.profile.FixedBackoff {
				backoff *= 2
				if backoff > s.profile.MaxBackoff {
					backoff = s.profile.MaxBackoff
				}
			}
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		req.Header.SetMethod(fasthttp.MethodGet)
		req.SetRequestURI(url)
		req.Header.Set("User-Agent", s.profile.UserAgent)
		if s.profile.Accept != "" {
			req.Header.Set("Accept", s.profile.Accept)
		}
		resp.StreamBody = true

		deadline := computeDeadline(ctx, s.profile.RequestTimeout)
		err := s.client.http.DoDeadline(req, resp, deadline)
		if err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusOK:
			body := resp.BodyStream()
			fasthttp.ReleaseRequest(req)
			return &releasingReader{r: body, resp: resp}, nil
		case status == fasthttp.StatusTooManyRequests:
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			lastErr = &RateLimitedError{Provider: s.profile.Name, Retries: s.profile.MaxRetries}
			continue
		case status == fasthttp.StatusNotFound:
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return nil, &NotFoundError{URL: url}
		default:
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return nil, &ProviderError{Provider: s.profile.Name, StatusCode: status}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("fetch %s: exhausted retries", url)
	}
	return nil, lastErr
}

// releasingReader wraps a fasthttp streamed body so the acquired
// *fasthttp.Response is released back to its pool once the caller is
// done reading.
type releasingReader struct {
	r    io.Reader
	resp *fasthttp.Response
}

func (r *releasingReader) Read(p []byte) (int, error) { return r.r.Read(p) }

func (r *releasingReader) Close() error {
	fasthttp.ReleaseResponse(r.resp)
	return nil
}

func computeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	clientDeadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDeadline) {
		return dl
	}
	return clientDeadline
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
