package events

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
)

var (
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrInvalidReceiver = errors.New("receiver should be a pointer")
)

// Topic is a dot separated event name. Patterns may use "*" for exactly one
// segment, a lone "#" for everything, or a leading/trailing "#" for
// suffix/prefix matches.
type Topic string

func NewTopic(topic string) (Topic, error) {
	if topic == "" {
		return "", ErrInvalidTopic
	}
	return Topic(topic), nil
}

func (t Topic) String() string {
	return string(t)
}

// Matches reports whether t satisfies pattern. An empty pattern matches
// every topic.
func (t Topic) Matches(pattern Topic) bool {
	p := pattern.String()
	topic := t.String()

	switch {
	case p == "" || p == "#":
		return true
	case len(p) > 1 && strings.HasPrefix(p, "#") && strings.HasSuffix(p, "#"):
		return strings.Contains(topic, strings.Trim(p, "#"))
	case strings.HasPrefix(p, "#"):
		return strings.HasSuffix(topic, strings.TrimPrefix(p, "#"))
	case strings.HasSuffix(p, "#"):
		return strings.HasPrefix(topic, strings.TrimSuffix(p, "#"))
	}

	patternParts := strings.Split(p, ".")
	topicParts := strings.Split(topic, ".")
	if len(patternParts) != len(topicParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] != "*" && patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}

// Metadata carries transport attributes alongside an event.
type Metadata map[string]string

func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Event is the unit exchanged over the bus.
type Event struct {
	ID            models.ID   `json:"id"`
	AggregateID   models.ID   `json:"aggregate_id"`
	Topic         Topic       `json:"topic"`
	EventType     string      `json:"event_type"`
	Version       string      `json:"version"`
	Data          interface{} `json:"data"`
	Metadata      Metadata    `json:"metadata"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// Publisher publishes events
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
}

// Subscriber delivers events whose topic matches pattern to handler.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern Topic, handler EventHandler) error
}

// EventHandler handles events
type EventHandler interface {
	HandlerID() string
	Handle(ctx context.Context, event *Event) error
}

// NewEvent creates an event whose topic and type are eventType.
func NewEvent(aggregateID models.ID, eventType string, data interface{}) *Event {
	return &Event{
		ID:          models.GenerateUUID(),
		AggregateID: aggregateID,
		Topic:       Topic(eventType),
		EventType:   eventType,
		Version:     "1.0",
		Data:        data,
		Metadata:    make(Metadata),
		Timestamp:   time.Now().UTC(),
	}
}

func (e *Event) WithCorrelationID(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata[key] = value
	return e
}

// MarshalPayload returns the JSON form of the event data.
func (e *Event) MarshalPayload() (json.RawMessage, error) {
	switch data := e.Data.(type) {
	case json.RawMessage:
		return data, nil
	case []byte:
		return data, nil
	}
	return json.Marshal(e.Data)
}

// UnmarshalPayload decodes the event data into v, which must be a pointer.
func (e *Event) UnmarshalPayload(v interface{}) error {
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrInvalidReceiver
	}

	raw, err := e.MarshalPayload()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Saga lifecycle events published by the engine.
const (
	SagaStartedEvent            = "saga.started"
	SagaStepCompletedEvent      = "saga.step.completed"
	SagaCompletedEvent          = "saga.completed"
	SagaFailedEvent             = "saga.failed"
	SagaCompensatingEvent       = "saga.compensating"
	SagaStepCompensatedEvent    = "saga.step.compensated"
	SagaCompensationFailedEvent = "saga.compensation.failed"
	SagaCompensatedEvent        = "saga.compensated"
)

// Commands accepted by the saga service.
const (
	SagaStartRequestedEvent      = "saga.start.requested"
	SagaAdvanceRequestedEvent    = "saga.advance.requested"
	SagaCompensateRequestedEvent = "saga.compensate.requested"
)
