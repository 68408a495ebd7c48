package camunda

import (
	"context"
	"testing"
	"time"

	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handlerFunc func(client worker.JobClient, job entities.Job) error

func (f handlerFunc) Handle(client worker.JobClient, job entities.Job) error {
	return f(client, job)
}

func createTestJob(key int64) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: key, Type: "billing.test", Retries: 3}}
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	taskType := "billing.test.instrument"
	obs := observability.NewNoop()

	ok := instrument(taskType, handlerFunc(func(worker.JobClient, entities.Job) error {
		return nil
	}), obs, zaptest.NewLogger(t))
	failing := instrument(taskType, handlerFunc(func(worker.JobClient, entities.Job) error {
		return errors.NewUsageLimitExceededError("interview", 2, 2)
	}), obs, zaptest.NewLogger(t))

	ok(nil, createTestJob(1))
	ok(nil, createTestJob(2))
	failing(nil, createTestJob(3))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues(taskType)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsFailed.WithLabelValues(taskType, "USAGE_LIMIT_EXCEEDED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues(taskType)))
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline exceeded"), true},
		{"backpressure", status.Error(codes.ResourceExhausted, "broker busy"), true},
		{"not found", status.Error(codes.NotFound, "process not found"), false},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad variables"), false},
		{"plain transport error", assertErr("dial tcp: connection refused"), true},
		{"plain other error", assertErr("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(tt.err))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	assert.Equal(t, "TIMEOUT_ERROR", errors.CodeOf(mapZeebeError(status.Error(codes.DeadlineExceeded, "slow"), "start process", 2)))
	assert.Equal(t, "TIMEOUT_ERROR", errors.CodeOf(mapZeebeError(assertErr("context deadline exceeded"), "start process", 1)))
	assert.Equal(t, "RESOURCE_NOT_FOUND", errors.CodeOf(mapZeebeError(status.Error(codes.NotFound, "no process payment-failed"), "start process", 1)))
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", errors.CodeOf(mapZeebeError(status.Error(codes.Unavailable, "down"), "start process", 4)))
	assert.Equal(t, "AUTHENTICATION_ERROR", errors.CodeOf(mapZeebeError(status.Error(codes.Unauthenticated, "token"), "start process", 1)))
}

func TestWithRetry(t *testing.T) {
	rc := &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		got, err := withRetry(context.Background(), rc, "start process", func(context.Context) (int64, error) {
			calls++
			if calls < 3 {
				return 0, status.Error(codes.Unavailable, "down")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), got)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), rc, "start process", func(context.Context) (int64, error) {
			calls++
			return 0, status.Error(codes.NotFound, "missing")
		})
		assert.Equal(t, "RESOURCE_NOT_FOUND", errors.CodeOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), rc, "start process", func(context.Context) (int64, error) {
			calls++
			return 0, status.Error(codes.Unavailable, "down")
		})
		assert.Equal(t, "EXTERNAL_SERVICE_ERROR", errors.CodeOf(err))
		assert.Equal(t, 3, calls)
	})
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
