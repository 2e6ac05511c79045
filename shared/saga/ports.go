package saga

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
)

// Repository persists saga instances.
//
// Create fails with ErrDuplicateSaga when the correlation id is taken. Save
// succeeds only if the stored version equals instance.Version; on success it
// increments instance.Version to match the stored record, otherwise it
// returns ErrConcurrentUpdate and leaves the store untouched. Lookups return
// ErrSagaNotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, instance *Instance) error
	Save(ctx context.Context, instance *Instance) error
	FindByID(ctx context.Context, id models.ID) (*Instance, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*Instance, error)
	FindByStatus(ctx context.Context, status Status) ([]*Instance, error)
}

// Locker serializes mutating calls per saga. The returned release function
// must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Action distinguishes forward from compensating step invocations in the
// journal.
type Action string

const (
	ActionExecute    Action = "execute"
	ActionCompensate Action = "compensate"
)

// Outcome is the result of a journaled step invocation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// StepRecord is one entry of a saga's step history.
type StepRecord struct {
	SagaID     models.ID     `json:"saga_id"`
	StepName   string        `json:"step_name"`
	StepIndex  int           `json:"step_index"`
	Action     Action        `json:"action"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// StepJournal keeps an append-only history of step invocations. The engine
// treats it as best effort: append failures are logged, never returned.
type StepJournal interface {
	Append(ctx context.Context, record StepRecord) error
	History(ctx context.Context, sagaID models.ID) ([]StepRecord, error)
}
