package regenerateaccesstoken

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/common/camunda/camundatest"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/validation"
	"loan-ledger/internal/models"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) RegenerateAccessToken(ctx context.Context, creditorID string) (*models.Creditor, error) {
	args := m.Called(ctx, creditorID)
	c, _ := args.Get(0).(*models.Creditor)
	return c, args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	svc := new(mockService)
	svc.On("RegenerateAccessToken", mock.Anything, "cred-1").
		Return(&models.Creditor{ID: "cred-1", AccessToken: "fresh"}, nil)

	h := NewHandler(LoadConfig(), svc, logger.NewTestLogger(t))

	var input Input
	require.NoError(t, validation.Decode(`{"creditorId":"cred-1"}`, InputSchema, &input))

	out, err := h.Execute(context.Background(), &input)

	require.NoError(t, err)
	assert.Equal(t, &Output{CreditorID: "cred-1", AccessToken: "fresh"}, out)
	svc.AssertExpectations(t)
}

func TestHandler_Handle(t *testing.T) {
	t.Run("completes job with the new token", func(t *testing.T) {
		svc := new(mockService)
		svc.On("RegenerateAccessToken", mock.Anything, "cred-1").
			Return(&models.Creditor{ID: "cred-1", AccessToken: "fresh"}, nil)
		client := camundatest.NewJobClient()

		h := NewHandler(LoadConfig(), svc, logger.NewTestLogger(t))
		require.NoError(t, h.Handle(client, camundatest.Job(1, TaskType, `{"creditorId":"cred-1"}`, 3)))

		completed := client.Completed()
		require.Len(t, completed, 1)
		assert.JSONEq(t, `{"creditorId":"cred-1","accessToken":"fresh"}`, completed[0].Variables)
	})

	t.Run("unknown creditor throws", func(t *testing.T) {
		svc := new(mockService)
		svc.On("RegenerateAccessToken", mock.Anything, "ghost").Return(nil, models.ErrCreditorNotFound)
		client := camundatest.NewJobClient()

		h := NewHandler(LoadConfig(), svc, logger.NewTestLogger(t))
		assert.Error(t, h.Handle(client, camundatest.Job(2, TaskType, `{"creditorId":"ghost"}`, 3)))

		thrown := client.Thrown()
		require.Len(t, thrown, 1)
		assert.Equal(t, "CREDITOR_NOT_FOUND", thrown[0].ErrorCode)
		assert.Empty(t, client.Completed())
	})

	t.Run("store failure is retried", func(t *testing.T) {
		svc := new(mockService)
		svc.On("RegenerateAccessToken", mock.Anything, "cred-1").Return(nil, errors.New("connection reset"))
		client := camundatest.NewJobClient()

		h := NewHandler(LoadConfig(), svc, logger.NewTestLogger(t))
		assert.Error(t, h.Handle(client, camundatest.Job(3, TaskType, `{"creditorId":"cred-1"}`, 3)))

		failed := client.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, int32(2), failed[0].Retries)
		assert.Empty(t, client.Thrown())
	})
}

func TestInputSchema_MissingCreditor(t *testing.T) {
	var input Input
	err := validation.Decode(`{"creditorId":""}`, InputSchema, &input)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
