package retry

import (
	"context"
	"time"
)

const maxBackoff = 2 * time.Second

// Do runs op up to attempts times with doubling backoff between tries.
// Only errors accepted by retryable are retried; any other error is returned at once.
func Do(ctx context.Context, attempts int, sleep time.Duration, retryable func(error) bool, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	backoff := sleep
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			return err
		}
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
		}
	}
	return err
}
