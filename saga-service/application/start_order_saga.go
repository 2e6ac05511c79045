package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

// StartOrderSagaCommand represents the command to start an order fulfillment saga
type StartOrderSagaCommand struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	Items      []domain.OrderItem `json:"items"`
}

// StartOrderSaga use case
type StartOrderSaga struct {
	engine domain.SagaEngine
	log    *logger.Logger
}

func NewStartOrderSaga(engine domain.SagaEngine, log *logger.Logger) *StartOrderSaga {
	if log == nil {
		log = logger.Nop()
	}
	return &StartOrderSaga{
		engine: engine,
		log:    log,
	}
}

// Execute registers a saga for the order without running any step
func (uc *StartOrderSaga) Execute(ctx context.Context, cmd *StartOrderSagaCommand) (*SagaResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, InvalidCommand(err)
	}

	data, err := domain.NewOrderSagaData(domain.Order{
		ID:         cmd.OrderID,
		CustomerID: cmd.CustomerID,
		Amount:     models.NewMoney(cmd.Amount, cmd.Currency),
		Items:      cmd.Items,
	}).ToData()
	if err != nil {
		return nil, err
	}

	instance, err := uc.engine.Start(ctx, cmd.OrderID, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start order saga")
	}

	uc.log.Info("order saga started", "saga_id", instance.ID, "order_id", cmd.OrderID)

	return NewSagaResponse(instance), nil
}

func (uc *StartOrderSaga) validateCommand(cmd *StartOrderSagaCommand) error {
	if cmd == nil {
		return errors.New("command is required")
	}

	if cmd.OrderID == "" {
		return errors.New("order ID is required")
	}

	if cmd.CustomerID == "" {
		return errors.New("customer ID is required")
	}

	if cmd.Amount <= 0 {
		return errors.New("amount must be positive")
	}

	if cmd.Currency == "" {
		return errors.New("currency is required")
	}

	if len(cmd.Items) == 0 {
		return errors.New("at least one item is required")
	}

	for _, item := range cmd.Items {
		if item.SKU == "" {
			return errors.New("item SKU is required")
		}
		if item.Quantity <= 0 {
			return errors.Errorf("quantity for %s must be positive", item.SKU)
		}
	}

	return nil
}
