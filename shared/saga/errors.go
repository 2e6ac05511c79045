package saga

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSagaNotFound       = errors.New("saga not found")
	ErrDuplicateSaga      = errors.New("saga already exists for correlation id")
	ErrInvalidState       = errors.New("invalid saga state")
	ErrUnknownStep        = errors.New("unknown step")
	ErrStepFailed         = errors.New("step failed")
	ErrCompensationFailed = errors.New("compensation failed")
	ErrConcurrentUpdate   = errors.New("saga was modified concurrently")
	ErrInvalidDefinition  = errors.New("invalid saga definition")
)

// StepError reports a failed forward or compensating action. It matches
// ErrStepFailed or ErrCompensationFailed through errors.Is.
type StepError struct {
	Kind      error
	Step      string
	StepIndex int
	Cause     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %q (index %d): %v", e.Kind, e.Step, e.StepIndex, e.Cause)
}

func (e *StepError) Is(target error) bool {
	return target == e.Kind
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

func invalidState(op string, instance *Instance) error {
	return errors.Wrapf(ErrInvalidState, "cannot %s saga %s in status %s", op, instance.ID, instance.Status)
}
