package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/pkg/errors"
)

// FailSagaCommand represents an operator request to stop a saga
type FailSagaCommand struct {
	SagaID string `json:"saga_id"`
	Reason string `json:"reason"`
}

// FailSaga use case
type FailSaga struct {
	engine domain.SagaEngine
}

func NewFailSaga(engine domain.SagaEngine) *FailSaga {
	return &FailSaga{engine: engine}
}

func (uc *FailSaga) Execute(ctx context.Context, cmd *FailSagaCommand) (*SagaResponse, error) {
	id, err := parseSagaID(cmd.SagaID)
	if err != nil {
		return nil, err
	}

	instance, err := uc.engine.Fail(ctx, id, cmd.Reason)
	if err != nil {
		return NewSagaResponse(instance), errors.Wrap(err, "failed to fail saga")
	}

	return NewSagaResponse(instance), nil
}
