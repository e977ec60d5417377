package supplier

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryWithBackoff invokes fn, sleeping baseDelay * 2^attempt between
// failures, for up to maxRetries additional attempts. Errors wrapped with
// Permanent are surfaced immediately; everything else is considered
// transient.
func RetryWithBackoff(ctx context.Context, maxRetries uint64, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if permanent, ok := err.(*permanentError); ok {
			return permanent.err
		}
		return retry.RetryableError(err)
	})
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string {
	return p.err.Error()
}

func (p *permanentError) Unwrap() error {
	return p.err
}

// Permanent marks err as deterministic so RetryWithBackoff fails fast.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
