package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
// Waiting between attempts stops as soon as ctx is done.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s canceled after %d attempts: %w", operationName, i+1, ctx.Err())
			case <-timer.C:
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type pinger interface {
	io.Closer
	Ping(ctx context.Context) error
}

// dial opens a client and pings it. A client whose ping fails is closed so
// each retry starts from a fresh pool.
func dial[C pinger](ctx context.Context, open func() (C, error)) (C, error) {
	var zero C
	c, err := open()
	if err != nil {
		return zero, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return zero, err
	}
	return c, nil
}
