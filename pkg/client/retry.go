package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webstatus_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webstatus_retry_backoff_seconds",
		Help:    "Backoff duration before retries by error class",
		Buckets: []float64{0.05, 0.1, 0.3, 0.6, 1.2, 2.5, 5},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webstatus_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Backoff shapes the delay between retry attempts. The delay before
// retry n (zero-based) is min(Max, Base × Factor^n); with Jitter
// enabled a random share of up to 20% is subtracted from the delay to
// spread simultaneous retries apart.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
	Jitter bool
}

// RetryPolicy bounds one logical page request.
type RetryPolicy struct {
	// MaxAttempts is the number of retries allowed after the first
	// attempt. Zero means a single attempt with no retry.
	MaxAttempts int

	// Timeout bounds each individual attempt, not the whole call; the
	// budget resets on every retry.
	Timeout time.Duration

	// Backoff shapes the wait between attempts.
	Backoff Backoff
}

// DefaultRetryPolicy returns the retry policy used when the caller does
// not override one: 3 retries, 30s per attempt, exponential backoff
// from 300ms capped at 5s with jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Timeout:     30 * time.Second,
		Backoff: Backoff{
			Base:   300 * time.Millisecond,
			Factor: 2.0,
			Max:    5 * time.Second,
			Jitter: true,
		},
	}
}

// backoffDelay computes the delay before the retry that follows failed
// attempt number attempt (zero-based).
func backoffDelay(b Backoff, attempt int) time.Duration {
	delay := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if limit := float64(b.Max); delay > limit {
		delay = limit
	}
	if b.Jitter {
		delay -= rand.Float64() * 0.2 * delay
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// retryWithBackoff runs fn with a per-attempt timeout until it
// succeeds, fails terminally, or the retry budget is spent. fn receives
// the attempt-scoped context; ctx spans the whole call and cancelling
// it ends the loop between attempts and during backoff sleeps.
//
// When retries were allowed and all attempts failed retryably, the
// returned error wraps both ErrRetryExhausted and the last attempt's
// error. A single-attempt policy returns the attempt's error as is.
func retryWithBackoff(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		err := runAttempt(ctx, policy.Timeout, fn)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrCancelled) {
			return err
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= policy.MaxAttempts {
			break
		}

		class := string(errorClass(err))
		delay := backoffDelay(policy.Backoff, attempt)
		retriesTotal.WithLabelValues(class).Inc()
		retryBackoffSeconds.WithLabelValues(class).Observe(delay.Seconds())

		log.Debug().
			Str("error_class", class).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Str("error_class", class).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	if policy.MaxAttempts == 0 {
		return lastErr
	}

	retryExhaustedTotal.WithLabelValues(string(errorClass(lastErr))).Inc()
	log.Warn().
		Int("attempts", policy.MaxAttempts+1).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, policy.MaxAttempts+1, lastErr)
}

// runAttempt applies the per-attempt timeout around one execution of fn.
func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
