package application

import (
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// ErrInvalidCommand marks input that was rejected before reaching the engine.
var ErrInvalidCommand = errors.New("invalid command")

type commandError struct {
	cause error
}

// InvalidCommand wraps cause so that it matches ErrInvalidCommand.
func InvalidCommand(cause error) error {
	return &commandError{cause: cause}
}

func (e *commandError) Error() string {
	return "invalid command: " + e.cause.Error()
}

func (e *commandError) Is(target error) bool {
	return target == ErrInvalidCommand
}

func (e *commandError) Unwrap() error {
	return e.cause
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// SagaResponse is the external view of a saga instance
type SagaResponse struct {
	SagaID           string         `json:"saga_id"`
	OrderID          string         `json:"order_id"`
	Definition       string         `json:"definition"`
	Status           string         `json:"status"`
	CurrentStepIndex int            `json:"current_step_index"`
	CompensatedCount int            `json:"compensated_count"`
	LastError        string         `json:"last_error,omitempty"`
	Data             map[string]any `json:"data"`
	StartedAt        string         `json:"started_at"`
	UpdatedAt        string         `json:"updated_at"`
	CompletedAt      string         `json:"completed_at,omitempty"`
	Version          int            `json:"version"`
}

// NewSagaResponse returns nil for a nil instance.
func NewSagaResponse(instance *saga.Instance) *SagaResponse {
	if instance == nil {
		return nil
	}

	response := &SagaResponse{
		SagaID:           instance.ID.String(),
		OrderID:          instance.CorrelationID,
		Definition:       instance.DefinitionName,
		Status:           instance.Status.String(),
		CurrentStepIndex: instance.CurrentStepIndex,
		CompensatedCount: instance.CompensatedCount,
		LastError:        instance.LastError,
		Data:             instance.Data.Clone(),
		StartedAt:        instance.StartedAt.Format(timeLayout),
		UpdatedAt:        instance.UpdatedAt.Format(timeLayout),
		Version:          instance.Version,
	}
	if instance.CompletedAt != nil {
		response.CompletedAt = instance.CompletedAt.Format(timeLayout)
	}

	return response
}

// StepRecordResponse is one entry of a saga's step history
type StepRecordResponse struct {
	StepName   string `json:"step_name"`
	StepIndex  int    `json:"step_index"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	RecordedAt string `json:"recorded_at"`
}

func newStepRecordResponse(record saga.StepRecord) StepRecordResponse {
	return StepRecordResponse{
		StepName:   record.StepName,
		StepIndex:  record.StepIndex,
		Action:     string(record.Action),
		Outcome:    string(record.Outcome),
		Error:      record.Error,
		DurationMs: record.Duration.Milliseconds(),
		RecordedAt: record.RecordedAt.Format(time.RFC3339Nano),
	}
}

func parseSagaID(raw string) (models.ID, error) {
	if raw == "" {
		return "", InvalidCommand(errors.New("saga ID is required"))
	}
	id, err := models.NewID(raw)
	if err != nil {
		return "", InvalidCommand(errors.Errorf("invalid saga ID %q", raw))
	}
	return id, nil
}
