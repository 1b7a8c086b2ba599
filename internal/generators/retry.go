package generators

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type retryPolicy struct {
	attempts int
	delay    time.Duration
}

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// the attempts are used up. The wait grows linearly with the attempt number.
func withRetry[T any](ctx context.Context, p retryPolicy, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(p.delay * time.Duration(attempt)):
			}
			log.Debug("retrying remote call", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(lastErr))
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// isRetryableError checks if an error is transient
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection refused", "connection reset", "rate limit", "resource_exhausted", "unavailable", "error 429", "error 500", "error 503"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
