package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, zaptest.NewLogger(t), "Redis connection")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		cause := errors.New("no route to host")
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			return cause
		}, 3, time.Millisecond, zaptest.NewLogger(t), "PostgreSQL connection")

		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "PostgreSQL connection failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops waiting on shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- retryWithBackoff(ctx, func() error {
				calls++
				return errors.New("connection refused")
			}, 5, time.Hour, zaptest.NewLogger(t), "Redis connection")
		}()
		cancel()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Contains(t, err.Error(), "Redis connection canceled after 1 attempts")
			assert.Equal(t, 1, calls)
		case <-time.After(5 * time.Second):
			t.Fatal("retry kept sleeping after cancellation")
		}
	})
}

type fakeClient struct {
	pingErr error
	closed  bool
}

func (c *fakeClient) Ping(context.Context) error { return c.pingErr }

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestDial(t *testing.T) {
	t.Run("closes a client that fails to ping", func(t *testing.T) {
		var opened []*fakeClient
		open := func() (*fakeClient, error) {
			c := &fakeClient{}
			if len(opened) < 2 {
				c.pingErr = errors.New("dial tcp: connection refused")
			}
			opened = append(opened, c)
			return c, nil
		}

		var got *fakeClient
		err := retryWithBackoff(context.Background(), func() error {
			var err error
			got, err = dial(context.Background(), open)
			return err
		}, 5, time.Millisecond, zaptest.NewLogger(t), "PostgreSQL connection")

		require.NoError(t, err)
		require.Len(t, opened, 3)
		assert.True(t, opened[0].closed)
		assert.True(t, opened[1].closed)
		assert.False(t, opened[2].closed)
		assert.Same(t, opened[2], got)
	})

	t.Run("open error leaves nothing to close", func(t *testing.T) {
		cause := errors.New("bad dsn")
		got, err := dial(context.Background(), func() (*fakeClient, error) { return nil, cause })
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, got)
	})
}
