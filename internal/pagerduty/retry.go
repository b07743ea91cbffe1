package pagerduty

import (
	"context"
	"errors"
	"time"
)

// withRetry runs fn up to maxRetries+1 times with doubling delay and returns
// the number of attempts made. Permanent delivery errors and context
// cancellation stop the loop immediately.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) (int, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}

		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) && deliveryErr.Permanent {
			return attempt + 1, err
		}
		if attempt >= maxRetries {
			return attempt + 1, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
