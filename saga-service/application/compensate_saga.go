package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// CompensateSaga use case undoes the completed steps of a saga
type CompensateSaga struct {
	engine domain.SagaEngine
	log    *logger.Logger
}

func NewCompensateSaga(engine domain.SagaEngine, log *logger.Logger) *CompensateSaga {
	if log == nil {
		log = logger.Nop()
	}
	return &CompensateSaga{engine: engine, log: log}
}

// Execute returns the COMPENSATING saga together with the error when a
// compensating action failed; executing again resumes from that step.
func (uc *CompensateSaga) Execute(ctx context.Context, cmd *SagaCommand) (*SagaResponse, error) {
	id, err := parseSagaID(cmd.SagaID)
	if err != nil {
		return nil, err
	}

	instance, err := uc.engine.Compensate(ctx, id)
	if err != nil {
		if errors.Is(err, saga.ErrCompensationFailed) {
			uc.log.Error("saga compensation stopped", "saga_id", id, "error", err)
		}
		return NewSagaResponse(instance), errors.Wrap(err, "failed to compensate saga")
	}

	return NewSagaResponse(instance), nil
}
