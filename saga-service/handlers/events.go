package handlers

import (
	"context"

	"github.com/draftea/saga-orchestrator/saga-service/application"
	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// CommandTopics matches every command the saga service accepts over the bus.
const CommandTopics events.Topic = "saga.*.requested"

// SagaEventHandlers turns bus commands into use case calls. A nil return acks
// the message; an error leaves it for redelivery.
type SagaEventHandlers struct {
	startOrderSaga *application.StartOrderSaga
	advanceSaga    *application.AdvanceSaga
	compensateSaga *application.CompensateSaga
	log            *logger.Logger
}

// NewSagaEventHandlers creates new saga event handlers
func NewSagaEventHandlers(
	startOrderSaga *application.StartOrderSaga,
	advanceSaga *application.AdvanceSaga,
	compensateSaga *application.CompensateSaga,
	log *logger.Logger,
) *SagaEventHandlers {
	if log == nil {
		log = logger.Nop()
	}
	return &SagaEventHandlers{
		startOrderSaga: startOrderSaga,
		advanceSaga:    advanceSaga,
		compensateSaga: compensateSaga,
		log:            log,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *SagaEventHandlers) HandlerID() string {
	return "saga-service-command-handler"
}

// Handle implements the events.EventHandler interface
func (h *SagaEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.SagaStartRequestedEvent:
		return h.HandleStartRequested(ctx, event)
	case events.SagaAdvanceRequestedEvent:
		return h.HandleAdvanceRequested(ctx, event)
	case events.SagaCompensateRequestedEvent:
		return h.HandleCompensateRequested(ctx, event)
	default:
		return nil
	}
}

// HandleStartRequested registers a new order saga. Replays of the same order
// are acked.
func (h *SagaEventHandlers) HandleStartRequested(ctx context.Context, event *events.Event) error {
	var cmd application.StartOrderSagaCommand
	if err := event.UnmarshalPayload(&cmd); err != nil {
		h.log.Warn("dropping malformed start command", "event_id", event.ID, "error", err)
		return nil
	}

	_, err := h.startOrderSaga.Execute(ctx, &cmd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, saga.ErrDuplicateSaga):
		h.log.Info("saga already started", "order_id", cmd.OrderID)
		return nil
	}
	return h.settle(event, err)
}

func (h *SagaEventHandlers) HandleAdvanceRequested(ctx context.Context, event *events.Event) error {
	cmd, err := h.sagaCommand(event)
	if err != nil {
		return h.settle(event, err)
	}

	_, err = h.advanceSaga.Execute(ctx, cmd)
	return h.settle(event, err)
}

func (h *SagaEventHandlers) HandleCompensateRequested(ctx context.Context, event *events.Event) error {
	cmd, err := h.sagaCommand(event)
	if err != nil {
		return h.settle(event, err)
	}

	_, err = h.compensateSaga.Execute(ctx, cmd)
	return h.settle(event, err)
}

// sagaCommand reads the saga id from the payload, falling back to the
// event's aggregate id.
func (h *SagaEventHandlers) sagaCommand(event *events.Event) (*application.SagaCommand, error) {
	var cmd application.SagaCommand
	if event.Data != nil {
		if err := event.UnmarshalPayload(&cmd); err != nil {
			return nil, application.InvalidCommand(err)
		}
	}
	if cmd.SagaID == "" {
		cmd.SagaID = event.AggregateID.String()
	}
	return &cmd, nil
}

// settle decides whether a failed command is worth another delivery.
// Failed forward steps are already recorded on the saga, so they are acked;
// contention and failed compensations are retried.
func (h *SagaEventHandlers) settle(event *events.Event, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, application.ErrInvalidCommand),
		errors.Is(err, saga.ErrSagaNotFound),
		errors.Is(err, saga.ErrInvalidState):
		h.log.Warn("dropping command", "event_id", event.ID, "event_type", event.EventType, "error", err)
		return nil
	case errors.Is(err, saga.ErrStepFailed):
		h.log.Info("saga step failed", "event_id", event.ID, "error", err)
		return nil
	default:
		return err
	}
}
