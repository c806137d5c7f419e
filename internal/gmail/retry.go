package gmail

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"mail-cli/pkg/mailerr"

	"google.golang.org/api/googleapi"
)

const (
	defaultMaxAttempts    = 5
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// retryPolicy bounds the backoff loop. Zero values fall back to defaults so
// the adapter can be constructed bare in tests.
type retryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration
	Sleep          func(context.Context, time.Duration) error
}

func (p retryPolicy) withDefaults() retryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}

	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}

	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}

	if p.RequestTimeout <= 0 {
		p.RequestTimeout = defaultRequestTimeout
	}

	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}

	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn with jittered exponential backoff on transient failures
// (429, 5xx, network). A Retry-After header on the failing response overrides
// the computed delay. Authorization errors and other 4xx are never retried.
func withRetry(ctx context.Context, policy retryPolicy, op string, fn func(context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt, lastErr)
			slog.Debug("retrying Gmail call", "op", op, "attempt", attempt+1, "delay", delay)

			if err := policy.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, policy.RequestTimeout)
		err := fn(reqCtx)

		cancel()

		if err == nil {
			return nil
		}

		lastErr = err

		if !isTransient(err) {
			return classify(err)
		}
	}

	return mailerr.Wrap(mailerr.CodeTransientGmail, lastErr,
		"gave up after %d attempts during %s", policy.MaxAttempts, op)
}

// backoffDelay computes base*2^(attempt-1) with ±25% jitter, capped, unless
// the server asked for a specific wait via Retry-After.
func backoffDelay(policy retryPolicy, attempt int, lastErr error) time.Duration {
	if ra := retryAfter(lastErr); ra > 0 {
		if ra > policy.MaxDelay {
			return policy.MaxDelay
		}

		return ra
	}

	delay := policy.BaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4

	return delay + jitter
}

func retryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}

	raw := gerr.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}

	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

// isTransient reports whether an error is worth retrying.
func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	return false
}

// classify maps a non-retryable failure onto the stable error taxonomy.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return mailerr.Wrap(mailerr.CodeNotAuthorized, err, "Gmail rejected the credentials").
				WithHint("Run 'mail verify' to re-authenticate.")
		case http.StatusForbidden:
			return mailerr.Wrap(mailerr.CodeNotAuthorized, err, "missing OAuth scope or access denied").
				WithHint("Re-authenticate with broader scopes via 'mail verify'.")
		case http.StatusNotFound:
			return mailerr.Wrap(mailerr.CodeNotFound, err, "resource not found")
		default:
			return mailerr.Wrap(mailerr.CodeGmailClient, err,
				"Gmail API error (%d): %s", gerr.Code, gerr.Message)
		}
	}

	return err
}
