package application

import (
	"context"
	"testing"
	"time"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/saga-service/mocks"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const validSagaID = "550e8400-e29b-41d4-a716-446655440030"

var testTime = time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC)

func testSaga(status saga.Status, current int) *saga.Instance {
	return &saga.Instance{
		ID:               models.ID(validSagaID),
		CorrelationID:    "order-1",
		DefinitionName:   domain.OrderFulfillmentSaga,
		Status:           status,
		CurrentStepIndex: current,
		Data:             saga.Data{"order_id": "order-1"},
		StartedAt:        testTime,
		UpdatedAt:        testTime.Add(time.Minute),
		Version:          current,
	}
}

func validStartCommand() *StartOrderSagaCommand {
	return &StartOrderSagaCommand{
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     5000,
		Currency:   "USD",
		Items:      []domain.OrderItem{{SKU: "sku-1", Quantity: 2}},
	}
}

func TestStartOrderSaga_Execute(t *testing.T) {
	tests := []struct {
		name           string
		command        func() *StartOrderSagaCommand
		setupMocks     func(*mocks.MockSagaEngine)
		expectedError  string
		expectedResult *SagaResponse
	}{
		{
			name:    "successful start",
			command: validStartCommand,
			setupMocks: func(engine *mocks.MockSagaEngine) {
				engine.EXPECT().Start(mock.Anything, "order-1", mock.MatchedBy(func(data saga.Data) bool {
					parsed, err := domain.ParseOrderSagaData(data)
					return err == nil &&
						parsed.CustomerID == "customer-1" &&
						parsed.Amount == models.NewMoney(5000, "USD") &&
						len(parsed.Items) == 1
				})).Return(testSaga(saga.StatusStarted, 0), nil).Once()
			},
			expectedResult: &SagaResponse{
				SagaID:     validSagaID,
				OrderID:    "order-1",
				Definition: domain.OrderFulfillmentSaga,
				Status:     "STARTED",
				Data:       map[string]any{"order_id": "order-1"},
				StartedAt:  testTime.Format(timeLayout),
				UpdatedAt:  testTime.Add(time.Minute).Format(timeLayout),
			},
		},
		{
			name: "missing order ID",
			command: func() *StartOrderSagaCommand {
				cmd := validStartCommand()
				cmd.OrderID = ""
				return cmd
			},
			setupMocks:    func(engine *mocks.MockSagaEngine) {},
			expectedError: "invalid command: order ID is required",
		},
		{
			name: "non-positive amount",
			command: func() *StartOrderSagaCommand {
				cmd := validStartCommand()
				cmd.Amount = 0
				return cmd
			},
			setupMocks:    func(engine *mocks.MockSagaEngine) {},
			expectedError: "invalid command: amount must be positive",
		},
		{
			name: "no items",
			command: func() *StartOrderSagaCommand {
				cmd := validStartCommand()
				cmd.Items = nil
				return cmd
			},
			setupMocks:    func(engine *mocks.MockSagaEngine) {},
			expectedError: "invalid command: at least one item is required",
		},
		{
			name: "bad quantity",
			command: func() *StartOrderSagaCommand {
				cmd := validStartCommand()
				cmd.Items[0].Quantity = -1
				return cmd
			},
			setupMocks:    func(engine *mocks.MockSagaEngine) {},
			expectedError: "invalid command: quantity for sku-1 must be positive",
		},
		{
			name:    "duplicate order",
			command: validStartCommand,
			setupMocks: func(engine *mocks.MockSagaEngine) {
				engine.EXPECT().Start(mock.Anything, "order-1", mock.Anything).
					Return(nil, errors.Wrap(saga.ErrDuplicateSaga, "correlation id order-1")).Once()
			},
			expectedError: "failed to start order saga: correlation id order-1: saga already exists for correlation id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := mocks.NewMockSagaEngine(t)
			tt.setupMocks(engine)

			uc := NewStartOrderSaga(engine, nil)
			result, err := uc.Execute(context.Background(), tt.command())

			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
				assert.Nil(t, result)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestStartOrderSaga_InvalidCommandIsMatchable(t *testing.T) {
	uc := NewStartOrderSaga(mocks.NewMockSagaEngine(t), nil)

	_, err := uc.Execute(context.Background(), &StartOrderSagaCommand{})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = uc.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}
