package infrastructure

import (
	"encoding/json"
	"time"

	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

// Message attribute keys the transport adds to event metadata.
const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
	SQSReceiveCountKey  = "sqs_receive_count"
)

// envelope is the JSON body of every message on the bus.
type envelope struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type,omitempty"`
	Version       string          `json:"version,omitempty"`
	Metadata      events.Metadata `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// snsNotification is how SNS wraps a message delivered to SQS without raw
// message delivery.
type snsNotification struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// EncodeEvent serializes an event into a bus message body.
func EncodeEvent(event *events.Event) ([]byte, error) {
	payload, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	metadata := make(events.Metadata, len(event.Metadata))
	for k, v := range event.Metadata {
		if isTransportKey(k) {
			continue
		}
		metadata[k] = v
	}

	body, err := json.Marshal(envelope{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		Topic:         event.Topic.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Metadata:      metadata,
		Payload:       payload,
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}

	return body, nil
}

// DecodeEvent parses a message body written by EncodeEvent, unwrapping an
// SNS notification if present. The payload stays raw JSON until a handler
// calls UnmarshalPayload.
func DecodeEvent(body []byte) (*events.Event, error) {
	var notification snsNotification
	if err := json.Unmarshal(body, &notification); err == nil && notification.Type == "Notification" {
		body = []byte(notification.Message)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}
	if env.Topic == "" {
		return nil, errors.Wrap(events.ErrInvalidTopic, "message has no topic")
	}

	eventType := env.EventType
	if eventType == "" {
		eventType = env.Topic
	}
	metadata := env.Metadata
	if metadata == nil {
		metadata = make(events.Metadata)
	}

	return &events.Event{
		ID:            models.ID(env.ID),
		AggregateID:   models.ID(env.AggregateID),
		Topic:         events.Topic(env.Topic),
		EventType:     eventType,
		Version:       env.Version,
		Data:          env.Payload,
		Metadata:      metadata,
		Timestamp:     env.Timestamp,
		CorrelationID: env.CorrelationID,
	}, nil
}

func isTransportKey(key string) bool {
	return key == SQSMessageIDKey || key == SQSReceiptHandleKey || key == SQSReceiveCountKey
}
