package saga

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

// Status is the lifecycle state of a saga instance.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
)

var AllStatuses = []Status{
	StatusStarted,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusCompensating,
	StatusCompensated,
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	for _, status := range AllStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", errors.Errorf("unknown saga status %q", s)
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no operation can move the saga any further.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated
}

// Data is the payload threaded through every step. Values must be JSON
// serializable.
type Data map[string]any

// Clone returns a deep copy. Nested maps, slices and pointers are copied as
// well, so neither a step nor a caller can reach the stored record through it.
func (d Data) Clone() Data {
	clone := make(Data, len(d))
	for k, v := range d {
		clone[k] = cloneValue(v)
	}
	return clone
}

// UnmarshalData decodes a JSON object into Data. Numbers are kept as
// json.Number so int64 amounts above 2^53 survive the trip.
func UnmarshalData(raw []byte) (Data, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var data Data
	if err := decoder.Decode(&data); err != nil {
		return nil, errors.Wrap(err, "failed to decode saga data")
	}
	if data == nil {
		data = Data{}
	}
	return data, nil
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case nil, string, bool, float64, int, int64, json.Number:
		return value
	case Data:
		return value.Clone()
	case map[string]any:
		return map[string]any(Data(value).Clone())
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

// cloneReflect copies typed values a step may have stored, such as
// []OrderItem or map[string]int.
func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneReflect(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneReflect(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(cloneReflect(v.Field(i)))
			}
		}
		return out
	}
	return v
}

// Merge copies every key of other into d.
func (d Data) Merge(other Data) {
	for k, v := range other {
		d[k] = v
	}
}

// Instance is the persisted record of one saga execution.
//
// CurrentStepIndex counts the forward steps that have succeeded; it is also
// the index of the next step to run. CompensatedCount counts undone steps,
// walking backwards from CurrentStepIndex-1, so that
// 0 <= CompensatedCount <= CurrentStepIndex <= number of steps at all times.
type Instance struct {
	ID               models.ID  `json:"saga_id"`
	CorrelationID    string     `json:"correlation_id"`
	DefinitionName   string     `json:"definition_name"`
	Status           Status     `json:"status"`
	CurrentStepIndex int        `json:"current_step_index"`
	CompensatedCount int        `json:"compensated_count"`
	LastError        string     `json:"last_error,omitempty"`
	Data             Data       `json:"data"`
	StartedAt        time.Time  `json:"started_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Version          int        `json:"version"`
}

// NewInstance creates a STARTED instance positioned at the first step.
func NewInstance(definitionName, correlationID string, data Data, now time.Time) *Instance {
	if data == nil {
		data = Data{}
	}
	return &Instance{
		ID:             models.GenerateUUID(),
		CorrelationID:  correlationID,
		DefinitionName: definitionName,
		Status:         StatusStarted,
		Data:           data.Clone(),
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a copy that shares no maps or pointers with i.
func (i *Instance) Clone() *Instance {
	clone := *i
	clone.Data = i.Data.Clone()
	if i.CompletedAt != nil {
		completedAt := *i.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}

// NextCompensationIndex is the index of the next step to undo, or -1 when
// every completed step has been compensated.
func (i *Instance) NextCompensationIndex() int {
	return i.CurrentStepIndex - 1 - i.CompensatedCount
}

func (i *Instance) canAdvance() bool {
	switch i.Status {
	case StatusStarted, StatusInProgress, StatusFailed:
		return true
	}
	return false
}

func (i *Instance) canCompensate() bool {
	switch i.Status {
	case StatusStarted, StatusInProgress, StatusFailed, StatusCompensating:
		return true
	}
	return false
}

func (i *Instance) canFail() bool {
	return i.Status == StatusStarted || i.Status == StatusInProgress
}

func (i *Instance) stepSucceeded(out Data, stepCount int, now time.Time) {
	i.Data.Merge(out)
	i.CurrentStepIndex++
	i.UpdatedAt = now
	if i.CurrentStepIndex >= stepCount {
		i.CurrentStepIndex = stepCount
		i.Status = StatusCompleted
		i.complete(now)
		return
	}
	i.Status = StatusInProgress
}

func (i *Instance) stepFailed(cause string, now time.Time) {
	i.Status = StatusFailed
	i.LastError = cause
	i.UpdatedAt = now
}

func (i *Instance) beginCompensation(now time.Time) {
	i.Status = StatusCompensating
	i.UpdatedAt = now
}

func (i *Instance) stepCompensated(now time.Time) {
	i.CompensatedCount++
	i.UpdatedAt = now
}

func (i *Instance) compensationFailed(cause string, now time.Time) {
	i.LastError = cause
	i.UpdatedAt = now
}

// finishCompensation marks the saga COMPENSATED once nothing is left to undo.
func (i *Instance) finishCompensation(now time.Time) bool {
	if i.CompensatedCount < i.CurrentStepIndex {
		return false
	}
	i.Status = StatusCompensated
	i.UpdatedAt = now
	i.complete(now)
	return true
}

func (i *Instance) complete(now time.Time) {
	if i.CompletedAt == nil {
		completedAt := now
		i.CompletedAt = &completedAt
	}
}
