package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/use-agent/scrapekit/metrics"
)

// Transport defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// DefaultTransientStatuses are retried by a zero-value RetryTransport.
var DefaultTransientStatuses = []int{http.StatusBadGateway}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the production Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryTransport is an http.RoundTripper that retries requests answered
// with a transient status.
//
// Attempt i (0-based) that gets a transient status and is not the last one
// is followed by a sleep of BaseDelay * 2^i. Every other status is returned
// at once. When the attempt budget runs out the last transient response is
// returned as is, with a nil error; interpreting it is up to the caller.
// Transport errors are not retried.
type RetryTransport struct {
	// Base performs the requests. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt.
	BaseDelay time.Duration

	// TransientStatuses are the retry-worthy status codes.
	TransientStatuses []int

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep Sleeper
}

// NewRetryTransport returns a RetryTransport over base with the default
// budget, delay and transient set.
func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	return &RetryTransport{
		Base:              base,
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		TransientStatuses: slices.Clone(DefaultTransientStatuses),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := t.attempts()

	for i := 0; ; i++ {
		resp, err := base.RoundTrip(req)
		if err != nil {
			metrics.ObserveTransportAttempt("error")
			return nil, err
		}
		if !t.isTransient(resp.StatusCode) {
			metrics.ObserveTransportAttempt("ok")
			return resp, nil
		}
		if i == attempts-1 {
			metrics.ObserveTransportAttempt("exhausted")
			return resp, nil
		}

		next, ok := rewind(req)
		if !ok {
			// The body cannot be replayed, so this response is final.
			metrics.ObserveTransportAttempt("exhausted")
			return resp, nil
		}
		metrics.ObserveTransportAttempt("retry")

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()

		delay := t.backoff(i)
		slog.Debug("transient response, retrying",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"attempt", i+1,
			"delay", delay,
		)
		if err := sleep(req.Context(), delay); err != nil {
			return nil, err
		}
		req = next
	}
}

func (t *RetryTransport) attempts() int {
	if t.MaxAttempts < 1 {
		return 1
	}
	return t.MaxAttempts
}

func (t *RetryTransport) backoff(attempt int) time.Duration {
	delay := t.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}
	return delay << attempt
}

func (t *RetryTransport) isTransient(status int) bool {
	statuses := t.TransientStatuses
	if statuses == nil {
		statuses = DefaultTransientStatuses
	}
	return slices.Contains(statuses, status)
}

// rewind returns a copy of req with a fresh body for the next attempt.
func rewind(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next := req.Clone(req.Context())
	next.Body = body
	return next, true
}
