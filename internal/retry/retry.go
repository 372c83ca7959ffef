// Package retry wraps github.com/sethvargo/go-retry with the fixed backoff
// policy sync-algorithm.md §5 mandates for every BlobStore/RemoteIndex call:
// base 250ms, cap 8s, max 5 attempts, exponential.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const (
	base        = 250 * time.Millisecond
	capped      = 8 * time.Second
	maxAttempts = 5
)

// Classifier reports whether an error returned by the wrapped function
// should be retried. Callers supply this so the policy stays in one place
// while each driver decides what "transient" means for its backend.
type Classifier func(err error) bool

// Do runs fn under the spec's fixed exponential-backoff policy. fn's error
// is passed to isTransient; a true result wraps it so go-retry retries, a
// false result (or nil) is returned as-is, stopping the retry loop
// immediately. Do never retries past 5 attempts regardless of classifier.
func Do(ctx context.Context, isTransient Classifier, fn func(ctx context.Context) error) error {
	backoff, err := goretry.NewExponential(base)
	if err != nil {
		return err
	}

	backoff = goretry.WithCappedDuration(capped, backoff)
	// WithMaxRetries counts retries after the first call, so maxAttempts
	// total calls means maxAttempts-1 retries.
	backoff = goretry.WithMaxRetries(maxAttempts-1, backoff)

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}

		if isTransient(callErr) {
			return goretry.RetryableError(callErr)
		}

		return callErr
	})
}
