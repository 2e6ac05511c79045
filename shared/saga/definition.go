package saga

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// StepHandler performs one step of a saga and knows how to undo it.
//
// Both actions receive a top-level copy of the saga data. Execute returns the
// keys it wants merged back into the saga data; Compensate only reads. Both
// may be invoked more than once for the same saga and must be idempotent.
type StepHandler interface {
	Execute(ctx context.Context, data Data) (Data, error)
	Compensate(ctx context.Context, data Data) error
}

// StepFuncs adapts plain functions to StepHandler. A nil CompensateFunc makes
// the step a no-op on compensation.
type StepFuncs struct {
	ExecuteFunc    func(ctx context.Context, data Data) (Data, error)
	CompensateFunc func(ctx context.Context, data Data) error
}

func (f StepFuncs) Execute(ctx context.Context, data Data) (Data, error) {
	return f.ExecuteFunc(ctx, data)
}

func (f StepFuncs) Compensate(ctx context.Context, data Data) error {
	if f.CompensateFunc == nil {
		return nil
	}
	return f.CompensateFunc(ctx, data)
}

// Step binds a unique name to its handler. Timeout overrides the engine's
// default step timeout when set.
type Step struct {
	Name    string
	Handler StepHandler
	Timeout time.Duration
}

// Definition is the immutable ordered list of steps of one saga type.
type Definition struct {
	name  string
	steps []Step
	index map[string]int
}

// NewDefinition validates and freezes the step list.
func NewDefinition(name string, steps ...Step) (*Definition, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidDefinition, "name is required")
	}
	if len(steps) == 0 {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s has no steps", name)
	}

	def := &Definition{
		name:  name,
		steps: make([]Step, len(steps)),
		index: make(map[string]int, len(steps)),
	}

	for i, step := range steps {
		if step.Name == "" {
			return nil, errors.Wrapf(ErrInvalidDefinition, "step %d has no name", i)
		}
		if step.Handler == nil {
			return nil, errors.Wrapf(ErrInvalidDefinition, "step %q has no handler", step.Name)
		}
		if step.Timeout < 0 {
			return nil, errors.Wrapf(ErrInvalidDefinition, "step %q has a negative timeout", step.Name)
		}
		if _, ok := def.index[step.Name]; ok {
			return nil, errors.Wrapf(ErrInvalidDefinition, "duplicate step %q", step.Name)
		}
		def.index[step.Name] = i
		def.steps[i] = step
	}

	return def, nil
}

func (d *Definition) Name() string {
	return d.name
}

func (d *Definition) Len() int {
	return len(d.steps)
}

// StepAt returns the step executed at position index.
func (d *Definition) StepAt(index int) (Step, error) {
	if index < 0 || index >= len(d.steps) {
		return Step{}, errors.Wrapf(ErrUnknownStep, "index %d out of range [0,%d)", index, len(d.steps))
	}
	return d.steps[index], nil
}

// IndexOf returns the position of the named step.
func (d *Definition) IndexOf(name string) (int, error) {
	i, ok := d.index[name]
	if !ok {
		return -1, errors.Wrapf(ErrUnknownStep, "%q", name)
	}
	return i, nil
}

// Names lists step names in execution order.
func (d *Definition) Names() []string {
	names := make([]string, len(d.steps))
	for i, step := range d.steps {
		names[i] = step.Name
	}
	return names
}

// StepName returns the name at index or "" when index is past the end.
func (d *Definition) StepName(index int) string {
	if index < 0 || index >= len(d.steps) {
		return ""
	}
	return d.steps[index].Name
}
