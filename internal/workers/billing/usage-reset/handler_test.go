package usagereset

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "b6d767d2-f8ed-4d21-a44b-0e5886fe8b19"

type MockService struct {
	mock.Mock
}

func (m *MockService) Reset(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, svc Resetter) *Handler {
	h, err := NewHandler(HandlerOptions{Service: svc, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func TestHandler_NewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{})
	assert.Error(t, err)

	_, err = NewHandler(HandlerOptions{Service: &MockService{}, CustomConfig: &Config{Timeout: time.Second}})
	assert.Error(t, err)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockService{})

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{"userId": testUserID}))
	require.NoError(t, err)
	assert.Equal(t, testUserID, in.UserID)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{}))
	assert.Equal(t, string(errors.ErrCodeValidationFailed), errors.CodeOf(err))
}

func TestHandler_Execute(t *testing.T) {
	svc := &MockService{}
	svc.On("Reset", mock.Anything, testUserID).Return(nil).Once()
	svc.On("Reset", mock.Anything, "a1d0c6e8-3f02-4c3b-9a64-6b5d2c1e0f9a").Return(errors.NewUserNotFoundError("a1d0c6e8-3f02-4c3b-9a64-6b5d2c1e0f9a")).Once()
	h := createTestHandler(t, svc)

	out, err := h.Execute(context.Background(), &Input{UserID: testUserID})
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01T00:00:00Z", out.ResetAt.Format(time.RFC3339))

	_, err = h.Execute(context.Background(), &Input{UserID: "a1d0c6e8-3f02-4c3b-9a64-6b5d2c1e0f9a"})
	assert.Equal(t, string(errors.ErrCodeUserNotFound), errors.CodeOf(err))
	svc.AssertExpectations(t)
}
