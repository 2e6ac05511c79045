package saga

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LifecycleEvent is the payload of every event the engine publishes.
type LifecycleEvent struct {
	SagaID           models.ID `json:"saga_id"`
	CorrelationID    string    `json:"correlation_id"`
	Definition       string    `json:"definition"`
	Status           Status    `json:"status"`
	Step             string    `json:"step,omitempty"`
	StepIndex        int       `json:"step_index"`
	CurrentStepIndex int       `json:"current_step_index"`
	CompensatedCount int       `json:"compensated_count"`
	Error            string    `json:"error,omitempty"`
}

// Engine drives instances of one Definition through their steps.
//
// Every mutating call loads the instance, works on a private copy and
// persists the copy through Repository.Save. When Save fails the call returns
// a nil instance and the stored record keeps its previous state. The engine
// never retries and never compensates on its own.
type Engine struct {
	definition  *Definition
	repository  Repository
	locker      Locker
	journal     StepJournal
	publisher   events.Publisher
	log         *logger.Logger
	stepTimeout time.Duration
	now         func() time.Time
}

func NewEngine(definition *Definition, repository Repository, opts ...Option) *Engine {
	e := &Engine{
		definition: definition,
		repository: repository,
		log:        logger.Nop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("definition", definition.Name())
	return e
}

func (e *Engine) Definition() *Definition {
	return e.definition
}

// Start persists a new STARTED instance for correlationID without running any
// step.
func (e *Engine) Start(ctx context.Context, correlationID string, data Data) (*Instance, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.start",
		trace.WithAttributes(attribute.String("saga.correlation_id", correlationID)))
	defer span.End()

	if correlationID == "" {
		return nil, spanError(span, errors.New("correlation id is required"))
	}

	instance := NewInstance(e.definition.Name(), correlationID, data, e.now())
	if err := e.repository.Create(ctx, instance); err != nil {
		return nil, spanError(span, errors.Wrap(err, "failed to create saga"))
	}

	e.log.Info("saga started", "saga_id", instance.ID, "correlation_id", correlationID)
	e.afterTransition(ctx, instance, events.SagaStartedEvent, "", -1)

	return instance, nil
}

// Advance runs the forward action of the current step. A FAILED saga may be
// advanced again, which retries the step that failed.
//
// On a forward failure the FAILED instance is returned together with a
// *StepError matching ErrStepFailed.
func (e *Engine) Advance(ctx context.Context, id models.ID) (*Instance, error) {
	ctx, span := e.startSpan(ctx, "saga.advance", id)
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer release()

	current, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !current.canAdvance() {
		return current, spanError(span, invalidState("advance", current))
	}

	index := current.CurrentStepIndex
	step, err := e.definition.StepAt(index)
	if err != nil {
		return current, spanError(span, errors.Wrapf(ErrInvalidState, "saga %s: %v", id, err))
	}
	span.SetAttributes(attribute.String("saga.step", step.Name))

	next := current.Clone()
	input := next.Data.Clone()
	start := time.Now()
	out, stepErr := e.invoke(ctx, step, func(stepCtx context.Context) (Data, error) {
		return step.Handler.Execute(stepCtx, input)
	})
	duration := time.Since(start)

	now := e.now()
	if stepErr != nil {
		next.stepFailed(stepErr.Error(), now)
	} else {
		next.stepSucceeded(out, e.definition.Len(), now)
	}

	// The step already ran; record the outcome even if the caller gave up.
	persistCtx := context.WithoutCancel(ctx)
	e.journalStep(persistCtx, next.ID, step, index, ActionExecute, stepErr, duration)

	if err := e.repository.Save(persistCtx, next); err != nil {
		return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
	}

	if stepErr != nil {
		e.log.Warn("saga step failed",
			"saga_id", id, "step", step.Name, "step_index", index, "error", stepErr)
		e.afterTransition(persistCtx, next, events.SagaFailedEvent, step.Name, index)
		return next, spanError(span, &StepError{Kind: ErrStepFailed, Step: step.Name, StepIndex: index, Cause: stepErr})
	}

	if next.Status == StatusCompleted {
		e.log.Info("saga completed", "saga_id", id, "steps", next.CurrentStepIndex)
		e.afterTransition(persistCtx, next, events.SagaCompletedEvent, step.Name, index)
		return next, nil
	}

	e.log.Debug("saga step completed", "saga_id", id, "step", step.Name, "step_index", index)
	e.afterTransition(persistCtx, next, events.SagaStepCompletedEvent, step.Name, index)
	return next, nil
}

// Compensate undoes completed steps in reverse order, persisting after each
// one. It is valid from STARTED, IN_PROGRESS and FAILED, and resumes from
// COMPENSATING where a previous call stopped.
//
// When a compensating action fails the saga stays COMPENSATING with
// LastError set and a *StepError matching ErrCompensationFailed is returned
// together with the instance. Calling Compensate again retries that step.
func (e *Engine) Compensate(ctx context.Context, id models.ID) (*Instance, error) {
	ctx, span := e.startSpan(ctx, "saga.compensate", id)
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer release()

	current, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !current.canCompensate() {
		return current, spanError(span, invalidState("compensate", current))
	}

	next := current.Clone()
	persistCtx := context.WithoutCancel(ctx)

	if next.Status != StatusCompensating {
		next.beginCompensation(e.now())
		if err := e.repository.Save(persistCtx, next); err != nil {
			return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
		}
		e.log.Info("saga compensation started",
			"saga_id", id, "completed_steps", next.CurrentStepIndex)
		e.afterTransition(persistCtx, next, events.SagaCompensatingEvent, "", -1)
	}

	for next.NextCompensationIndex() >= 0 {
		index := next.NextCompensationIndex()
		step, err := e.definition.StepAt(index)
		if err != nil {
			return next, spanError(span, errors.Wrapf(ErrInvalidState, "saga %s: %v", id, err))
		}

		input := next.Data.Clone()
		start := time.Now()
		_, stepErr := e.invoke(ctx, step, func(stepCtx context.Context) (Data, error) {
			return nil, step.Handler.Compensate(stepCtx, input)
		})
		e.journalStep(persistCtx, next.ID, step, index, ActionCompensate, stepErr, time.Since(start))

		now := e.now()
		if stepErr != nil {
			next.compensationFailed(stepErr.Error(), now)
			if err := e.repository.Save(persistCtx, next); err != nil {
				return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
			}
			e.log.Error("saga compensation failed",
				"saga_id", id, "step", step.Name, "step_index", index, "error", stepErr)
			e.afterTransition(persistCtx, next, events.SagaCompensationFailedEvent, step.Name, index)
			return next, spanError(span, &StepError{Kind: ErrCompensationFailed, Step: step.Name, StepIndex: index, Cause: stepErr})
		}

		next.stepCompensated(now)
		finished := next.finishCompensation(now)
		if err := e.repository.Save(persistCtx, next); err != nil {
			return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
		}
		e.afterTransition(persistCtx, next, events.SagaStepCompensatedEvent, step.Name, index)

		if finished {
			e.log.Info("saga compensated", "saga_id", id, "compensated_steps", next.CompensatedCount)
			e.afterTransition(persistCtx, next, events.SagaCompensatedEvent, "", -1)
			return next, nil
		}
	}

	// No completed steps to undo.
	next.finishCompensation(e.now())
	if err := e.repository.Save(persistCtx, next); err != nil {
		return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
	}
	e.log.Info("saga compensated", "saga_id", id, "compensated_steps", next.CompensatedCount)
	e.afterTransition(persistCtx, next, events.SagaCompensatedEvent, "", -1)

	return next, nil
}

// Fail marks a STARTED or IN_PROGRESS saga FAILED without running a step.
func (e *Engine) Fail(ctx context.Context, id models.ID, reason string) (*Instance, error) {
	ctx, span := e.startSpan(ctx, "saga.fail", id)
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer release()

	current, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !current.canFail() {
		return current, spanError(span, invalidState("fail", current))
	}

	if reason == "" {
		reason = "failed by operator"
	}

	next := current.Clone()
	next.stepFailed(reason, e.now())
	persistCtx := context.WithoutCancel(ctx)
	if err := e.repository.Save(persistCtx, next); err != nil {
		return nil, spanError(span, errors.Wrapf(err, "failed to save saga %s", id))
	}

	e.log.Warn("saga failed by request", "saga_id", id, "reason", reason)
	e.afterTransition(persistCtx, next, events.SagaFailedEvent, e.definition.StepName(next.CurrentStepIndex), next.CurrentStepIndex)

	return next, nil
}

// GetStatus returns the stored instance.
func (e *Engine) GetStatus(ctx context.Context, id models.ID) (*Instance, error) {
	ctx, span := e.startSpan(ctx, "saga.get", id)
	defer span.End()

	instance, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	return instance, nil
}

func (e *Engine) FindByCorrelationID(ctx context.Context, correlationID string) (*Instance, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.find_by_correlation",
		trace.WithAttributes(attribute.String("saga.correlation_id", correlationID)))
	defer span.End()

	instance, err := e.repository.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, spanError(span, err)
	}
	return instance, nil
}

func (e *Engine) ListByStatus(ctx context.Context, status Status) ([]*Instance, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.list_by_status",
		trace.WithAttributes(attribute.String("saga.status", status.String())))
	defer span.End()

	instances, err := e.repository.FindByStatus(ctx, status)
	if err != nil {
		return nil, spanError(span, errors.Wrapf(err, "failed to list sagas in status %s", status))
	}
	return instances, nil
}

// invoke runs fn bounded by the step timeout (or the engine default) and the
// caller's context. A step that does not finish in time is a failure; its
// goroutine is abandoned and its result discarded.
func (e *Engine) invoke(ctx context.Context, step Step, fn func(context.Context) (Data, error)) (Data, error) {
	timeout := step.Timeout
	if timeout == 0 {
		timeout = e.stepTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		data Data
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: errors.Errorf("step %s panicked: %v", step.Name, r)}
			}
		}()
		data, err := fn(ctx)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "step %s did not finish", step.Name)
	}
}

func (e *Engine) lock(ctx context.Context, id models.ID) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}

	release, err := e.locker.Lock(ctx, id.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock saga %s", id)
	}

	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("failed to release saga lock", "saga_id", id, "error", err)
		}
	}, nil
}

func (e *Engine) journalStep(ctx context.Context, sagaID models.ID, step Step, index int, action Action, stepErr error, duration time.Duration) {
	record := StepRecord{
		SagaID:     sagaID,
		StepName:   step.Name,
		StepIndex:  index,
		Action:     action,
		Outcome:    OutcomeSucceeded,
		Duration:   duration,
		RecordedAt: e.now(),
	}
	if stepErr != nil {
		record.Outcome = OutcomeFailed
		record.Error = stepErr.Error()
	}

	telemetry.RecordHistogram(ctx, "saga_step_duration_seconds", "Saga step duration", duration.Seconds(),
		attribute.String("definition", e.definition.Name()),
		attribute.String("step", step.Name),
		attribute.String("action", string(action)),
		attribute.String("outcome", string(record.Outcome)),
	)

	if e.journal == nil {
		return
	}
	if err := e.journal.Append(ctx, record); err != nil {
		e.log.Warn("failed to journal saga step", "saga_id", sagaID, "step", step.Name, "error", err)
	}
}

func (e *Engine) afterTransition(ctx context.Context, instance *Instance, eventType, step string, index int) {
	telemetry.RecordCounter(ctx, "saga_transitions_total", "Saga state transitions", 1,
		attribute.String("definition", instance.DefinitionName),
		attribute.String("event", eventType),
		attribute.String("status", instance.Status.String()),
	)

	if e.publisher == nil {
		return
	}

	event := events.NewEvent(instance.ID, eventType, LifecycleEvent{
		SagaID:           instance.ID,
		CorrelationID:    instance.CorrelationID,
		Definition:       instance.DefinitionName,
		Status:           instance.Status,
		Step:             step,
		StepIndex:        index,
		CurrentStepIndex: instance.CurrentStepIndex,
		CompensatedCount: instance.CompensatedCount,
		Error:            instance.LastError,
	}).
		WithCorrelationID(instance.CorrelationID).
		WithMetadata("definition", instance.DefinitionName)

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn("failed to publish saga event", "saga_id", instance.ID, "event", eventType, "error", err)
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, id models.ID) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, name, trace.WithAttributes(
		attribute.String("saga.id", id.String()),
		attribute.String("saga.definition", e.definition.Name()),
	))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
