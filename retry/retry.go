// Package retry implements generic exponential backoff over a two-class
// error taxonomy (retryable vs non-retryable), plus pure classifier
// functions that map provider status codes and messages onto that
// taxonomy. Retry sleeps honor context cancellation.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/nodeai/flowengine/errs"
)

// Op is the operation retried by Do. It returns the operation's result and
// an error classified as *errs.RetryableError or *errs.NonRetryableError;
// any other error is treated as retryable.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Policy configures the backoff schedule. The first call to Op is attempt 0;
// MaxRetries further attempts are permitted, for a total of MaxRetries+1
// invocations.
type Policy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultPolicy mirrors the teacher's conservative defaults: a handful of
// retries with a one-second base delay capped at thirty seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
		Jitter:          true,
	}
}

// Do executes op, retrying on retryable failures per the policy. On success
// it returns immediately. A non-retryable error is rethrown without
// consuming any retry budget. Once the retry budget is exhausted, the last
// error is returned. Sleeps abort early if ctx is canceled.
func Do[T any](ctx context.Context, policy Policy, op Op[T]) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := backoffDelay(policy, attempt)
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func isRetryable(err error) bool {
	var nonRetryable *errs.NonRetryableError
	if asNonRetryable(err, &nonRetryable) {
		return false
	}
	var retryable *errs.RetryableError
	if asRetryable(err, &retryable) {
		return true
	}
	// Unknown errors default to retryable per the classifier contract.
	return true
}

// backoffDelay computes min(initialDelay * base^attempt, maxDelay), then
// applies a uniform [0.5, 1.0) jitter factor when enabled.
func backoffDelay(policy Policy, attempt int) time.Duration {
	raw := float64(policy.InitialDelay) * math.Pow(policy.ExponentialBase, float64(attempt))
	delay := time.Duration(raw)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if policy.Jitter {
		factor := 0.5 + rand.Float64()*0.5
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func asRetryable(err error, target **errs.RetryableError) bool {
	for err != nil {
		if re, ok := err.(*errs.RetryableError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func asNonRetryable(err error, target **errs.NonRetryableError) bool {
	for err != nil {
		if nre, ok := err.(*errs.NonRetryableError); ok {
			*target = nre
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ClassifyHTTPStatus implements the generic status-code classifier: 429 and
// 5xx are retryable; 4xx client errors (other than 429) are not; anything
// else defaults to retryable.
func ClassifyHTTPStatus(status int, cause error) error {
	switch status {
	case 429, 500, 502, 503, 504:
		return &errs.RetryableError{Cause: cause}
	case 400, 401, 403, 404, 422:
		return &errs.NonRetryableError{Cause: cause}
	default:
		return &errs.RetryableError{Cause: cause}
	}
}

// ClassifyProviderMessage implements the provider-agnostic substring
// classifier used when a provider SDK surfaces only a message, not a status
// code. It is deliberately conservative: anything not recognized as
// permanent is treated as transient.
func ClassifyProviderMessage(msg string, cause error) error {
	lower := strings.ToLower(msg)
	for _, s := range []string{"invalid api key", "unauthorized", "invalid request", "bad request", "model not found"} {
		if strings.Contains(lower, s) {
			return &errs.NonRetryableError{Cause: cause}
		}
	}
	for _, s := range []string{"rate limit", "timeout", "connection"} {
		if strings.Contains(lower, s) {
			return &errs.RetryableError{Cause: cause}
		}
	}
	return &errs.RetryableError{Cause: cause}
}
