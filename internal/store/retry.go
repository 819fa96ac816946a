package store

import (
	"context"
	"time"
)

const secondCopyAttempts = 3

// retryWrite runs fn up to attempts times with linear backoff, the policy
// used for the recipient-side copy of the double-write. Returns the last
// error if every attempt fails.
func retryWrite(ctx context.Context, attempts int, fn func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		select {
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
