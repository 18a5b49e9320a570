package recommender

import (
	"context"
	"errors"
	"log"
	"time"

	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// withRetry runs fn up to the configured attempt count with exponential
// backoff. Missing resources and context cancellation are terminal; only
// transient transport failures are retried.
func (inv *Invoker) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := inv.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := inv.retryBaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var rnf *smtypes.ResourceNotFound
		if errors.As(err, &rnf) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts {
			break
		}

		log.Printf("[retry] %s attempt %d/%d failed: %v", op, attempt, attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
