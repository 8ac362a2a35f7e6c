// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff calls op up to maxAttempts times, doubling the wait after
// each retryable failure. op returns (retry, err); a nil err or retry=false
// ends the loop. On exhaustion the last error is returned. Waiting is
// interrupted by ctx.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	wait := baseBackoff
	for attempt := range maxAttempts {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timer.C:
			}
			wait *= 2
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}
