package engine

import (
	"context"
	"time"

	"github.com/finedge/corebank/internal/bankerr"
)

// RetryPolicy retries transient store failures (deadlock, unavailable) with
// exponential backoff. It is the single place retry behaviour lives.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Execute runs op, retrying retryable failures until attempts are exhausted
// or the context deadline expires.
func (p RetryPolicy) Execute(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.BaseBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !bankerr.Retryable(err) || attempt >= attempts {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return bankerr.Wrap(bankerr.CodeTimeout, "deadline expired during retry", ctx.Err())
		}
		backoff *= 2
	}
}
