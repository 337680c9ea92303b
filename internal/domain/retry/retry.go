// Package retry wraps a network operation with bounded exponential backoff.
//
// Classification is deliberately narrow: connection failures, timeouts, and
// a fixed set of 5xx statuses are retriable; everything else (other HTTP
// statuses, decode errors) is fatal and propagates on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	obserrors "github.com/vestigas/delivery-ingest/internal/observability/errors"
	"github.com/vestigas/delivery-ingest/internal/observability/statsd"
)

// retriableStatus is the fixed set of HTTP statuses worth retrying.
var retriableStatus = map[int]struct{}{
	500: {},
	502: {},
	503: {},
	504: {},
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPStatusError reports a non-2xx response from a partner endpoint.
type HTTPStatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status carried by the error.
func (e *HTTPStatusError) StatusCode() int {
	return e.Code
}

// Retriable reports whether an error is transient: a timeout, a connection
// failure, or an HTTP status in the retriable set.
func Retriable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		_, ok := retriableStatus[sc.StatusCode()]
		return ok
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// http.Client wraps dial failures in *url.Error around *net.OpError.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// PolicyOptions configure a retry Policy.
type PolicyOptions struct {
	MaxRetries  int           // Additional attempts after the first; negative clamps to 0
	BaseBackoff time.Duration // Backoff for attempt 0; defaults to 1s
	Jitter      bool          // Scale each delay by a uniform factor in [0,1)

	Logger  *slog.Logger                                   // Optional
	Metrics statsd.Sink                                    // Optional: per-attempt retry counters
	Sleep   func(ctx context.Context, d time.Duration) error // Optional: override delay (tests)
	Rand    func() float64                                 // Optional: override jitter source (tests)
}

// Policy executes operations with bounded exponential backoff and jitter.
type Policy struct {
	maxRetries int
	base       time.Duration
	jitter     bool
	logger     *slog.Logger
	metrics    statsd.Sink
	sleep      func(ctx context.Context, d time.Duration) error
	randFloat  func() float64
}

// NewPolicy constructs a Policy, filling defaults for unset options.
func NewPolicy(opts PolicyOptions) *Policy {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := opts.BaseBackoff
	if base <= 0 {
		base = time.Second
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	randFloat := opts.Rand
	if randFloat == nil {
		randFloat = rand.Float64
	}
	return &Policy{
		maxRetries: maxRetries,
		base:       base,
		jitter:     opts.Jitter,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sleep:      sleep,
		randFloat:  randFloat,
	}
}

// Do executes op up to MaxRetries+1 times. Fatal errors propagate
// immediately; retriable errors are retried with exponential backoff. When
// attempts are exhausted the last error is returned wrapped with exhaustion
// context, transparent to errors.Is and errors.As.
func (p *Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !Retriable(err) {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "fatal error, not retrying",
					"operation", name,
					"attempt", attempt+1,
					"max_attempts", p.maxRetries+1,
					"error", err,
					"error_class", obserrors.Classify(err),
				)
			}
			return err
		}

		lastErr = err
		if attempt == p.maxRetries {
			break
		}

		delay := p.delayFor(attempt)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "retriable error, backing off",
				"operation", name,
				"attempt", attempt+1,
				"max_attempts", p.maxRetries+1,
				"delay", delay,
				"error", err,
				"error_class", obserrors.Classify(err),
			)
		}
		if p.metrics != nil {
			p.metrics.Count("retry.attempts", 1, map[string]string{
				"operation":   name,
				"error_class": obserrors.Classify(err),
			})
		}

		if serr := p.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry of %s interrupted: %w", name, serr)
		}
	}

	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", name, p.maxRetries+1, lastErr)
}

// delayFor computes base * 2^attempt, scaled into [0, full) when jitter is on.
func (p *Policy) delayFor(attempt int) time.Duration {
	full := p.base << uint(attempt)
	if !p.jitter {
		return full
	}
	return time.Duration(p.randFloat() * float64(full))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
