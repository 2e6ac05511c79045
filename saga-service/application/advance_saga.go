package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// SagaCommand addresses a single saga
type SagaCommand struct {
	SagaID string `json:"saga_id"`
}

// AdvanceSaga use case runs the next forward step
type AdvanceSaga struct {
	engine domain.SagaEngine
	log    *logger.Logger
}

func NewAdvanceSaga(engine domain.SagaEngine, log *logger.Logger) *AdvanceSaga {
	if log == nil {
		log = logger.Nop()
	}
	return &AdvanceSaga{engine: engine, log: log}
}

// Execute returns the saga view together with the error when a step failed,
// so callers can report the FAILED state.
func (uc *AdvanceSaga) Execute(ctx context.Context, cmd *SagaCommand) (*SagaResponse, error) {
	id, err := parseSagaID(cmd.SagaID)
	if err != nil {
		return nil, err
	}

	instance, err := uc.engine.Advance(ctx, id)
	if err != nil {
		if errors.Is(err, saga.ErrStepFailed) {
			uc.log.Warn("saga step failed", "saga_id", id, "error", err)
		}
		return NewSagaResponse(instance), errors.Wrap(err, "failed to advance saga")
	}

	return NewSagaResponse(instance), nil
}
