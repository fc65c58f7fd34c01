package retrypolicy

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/altamira-data/queryhub/common/logger"
)

// Policy is an explicit retry policy: attempt count, initial delay, backoff
// factor and a retryable-error predicate. External call sites hold a Policy
// instead of wrapping themselves in ad hoc loops.
type Policy struct {
	Attempts      uint
	InitialDelay  time.Duration
	BackoffFactor float64
	Retryable     func(error) bool
}

// Database is the stock policy for legacy-store calls: quick first retry,
// doubling delays.
var Database = Policy{
	Attempts:      3,
	InitialDelay:  500 * time.Millisecond,
	BackoffFactor: 2.0,
	Retryable:     IsTransient,
}

// LLMService is the stock policy for completion/embedding calls. The longer
// initial delay and steeper factor track rate-limit recovery.
var LLMService = Policy{
	Attempts:      3,
	InitialDelay:  2 * time.Second,
	BackoffFactor: 3.0,
	Retryable:     IsTransient,
}

// Do runs op under the policy. Retries stop as soon as the context is done
// or the predicate reports the error as non-retryable.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	return retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			d := float64(p.InitialDelay)
			for i := uint(0); i < n; i++ {
				d *= p.BackoffFactor
			}
			return time.Duration(d)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("%s failed (attempt %d/%d): %v", name, n+1, attempts, err)
		}),
	)
}

// transientError marks an error as transient so policies retry it.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
func (e *transientError) Transient() bool {
	return true
}

// MarkTransient wraps err so IsTransient reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err belongs to the connection/timeout/rate-limit
// class that retrying can fix. Validation rejections and authorization
// denials are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var marked interface{ Transient() bool }
	if errors.As(err, &marked) {
		return marked.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
