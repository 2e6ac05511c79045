package saga

import (
	"time"

	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/logger"
)

type Option func(*Engine)

// WithLocker serializes mutating calls per saga on top of optimistic
// versioning.
func WithLocker(locker Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithJournal records every step invocation.
func WithJournal(journal StepJournal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithPublisher emits lifecycle events after each persisted transition.
func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithStepTimeout bounds steps that do not declare their own timeout. Zero
// leaves them bounded only by the caller's context.
func WithStepTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.stepTimeout = timeout
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
