package infrastructure

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/pkg/errors"
)

var _ events.Subscriber = (*SQSSubscriberAdapter)(nil)

// SQSSubscriberAdapter implements events.Subscriber on one queue. Each
// Subscribe call starts its own SQSEventSubscriber filtered by pattern.
type SQSSubscriberAdapter struct {
	mu          sync.Mutex
	client      SQSAPI
	queueURL    string
	log         *logger.Logger
	opts        []SQSSubscriberOption
	subscribers []*SQSEventSubscriber
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(awsCfg aws.Config, endpoint, queueURL string, log *logger.Logger, opts ...SQSSubscriberOption) *SQSSubscriberAdapter {
	return NewSQSSubscriberAdapterWithClient(newSQSClient(awsCfg, endpoint), queueURL, log, opts...)
}

func NewSQSSubscriberAdapterWithClient(client SQSAPI, queueURL string, log *logger.Logger, opts ...SQSSubscriberOption) *SQSSubscriberAdapter {
	if log == nil {
		log = logger.Nop()
	}
	return &SQSSubscriberAdapter{
		client:   client,
		queueURL: queueURL,
		log:      log,
		opts:     opts,
	}
}

// Subscribe implements events.Subscriber interface
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, pattern events.Topic, handler events.EventHandler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	opts := append(append([]SQSSubscriberOption{}, s.opts...), WithTopicPattern(pattern))
	subscriber := NewSQSEventSubscriber(s.client, s.queueURL, handler, s.log, opts...)

	if err := subscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, subscriber)
	s.mu.Unlock()

	return nil
}

// Close stops every subscriber
func (s *SQSSubscriberAdapter) Close(ctx context.Context) error {
	s.mu.Lock()
	subscribers := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		if err := subscriber.Stop(ctx); err != nil {
			return errors.Wrap(err, "failed to stop SQS subscriber")
		}
	}
	return nil
}
