package application

import (
	"context"
	"sort"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// GetSagaQuery looks a saga up by id or, if no id is given, by order id
type GetSagaQuery struct {
	SagaID  string `json:"saga_id"`
	OrderID string `json:"order_id"`
}

// GetSaga use case
type GetSaga struct {
	engine domain.SagaEngine
}

func NewGetSaga(engine domain.SagaEngine) *GetSaga {
	return &GetSaga{engine: engine}
}

func (uc *GetSaga) Execute(ctx context.Context, query *GetSagaQuery) (*SagaResponse, error) {
	if query.SagaID == "" && query.OrderID == "" {
		return nil, InvalidCommand(errors.New("saga ID or order ID is required"))
	}

	if query.SagaID == "" {
		instance, err := uc.engine.FindByCorrelationID(ctx, query.OrderID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find saga")
		}
		return NewSagaResponse(instance), nil
	}

	id, err := parseSagaID(query.SagaID)
	if err != nil {
		return nil, err
	}

	instance, err := uc.engine.GetStatus(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find saga")
	}

	return NewSagaResponse(instance), nil
}

// ListSagasQuery filters by status; an empty status lists every saga
type ListSagasQuery struct {
	Status string `json:"status"`
}

// ListSagas use case
type ListSagas struct {
	engine domain.SagaEngine
}

func NewListSagas(engine domain.SagaEngine) *ListSagas {
	return &ListSagas{engine: engine}
}

// Execute returns sagas oldest first
func (uc *ListSagas) Execute(ctx context.Context, query *ListSagasQuery) ([]*SagaResponse, error) {
	statuses := saga.AllStatuses
	if query.Status != "" {
		status, err := saga.ParseStatus(query.Status)
		if err != nil {
			return nil, InvalidCommand(err)
		}
		statuses = []saga.Status{status}
	}

	var instances []*saga.Instance
	for _, status := range statuses {
		found, err := uc.engine.ListByStatus(ctx, status)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list sagas")
		}
		instances = append(instances, found...)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].StartedAt.Before(instances[j].StartedAt)
	})

	responses := make([]*SagaResponse, len(instances))
	for i, instance := range instances {
		responses[i] = NewSagaResponse(instance)
	}

	return responses, nil
}

// GetSagaHistory use case returns every journaled step attempt of a saga
type GetSagaHistory struct {
	engine  domain.SagaEngine
	journal saga.StepJournal
}

func NewGetSagaHistory(engine domain.SagaEngine, journal saga.StepJournal) *GetSagaHistory {
	return &GetSagaHistory{engine: engine, journal: journal}
}

func (uc *GetSagaHistory) Execute(ctx context.Context, query *GetSagaQuery) ([]StepRecordResponse, error) {
	id, err := parseSagaID(query.SagaID)
	if err != nil {
		return nil, err
	}

	if _, err := uc.engine.GetStatus(ctx, id); err != nil {
		return nil, errors.Wrap(err, "failed to find saga")
	}

	records, err := uc.journal.History(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saga history")
	}

	history := make([]StepRecordResponse, len(records))
	for i, record := range records {
		history[i] = newStepRecordResponse(record)
	}

	return history, nil
}
