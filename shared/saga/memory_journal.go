package saga

import (
	"context"
	"sync"

	"github.com/draftea/saga-orchestrator/shared/models"
)

var _ StepJournal = (*MemoryJournal)(nil)

// MemoryJournal is a StepJournal for tests and local runs.
type MemoryJournal struct {
	mu      sync.RWMutex
	records map[models.ID][]StepRecord
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{records: make(map[models.ID][]StepRecord)}
}

func (j *MemoryJournal) Append(_ context.Context, record StepRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[record.SagaID] = append(j.records[record.SagaID], record)
	return nil
}

func (j *MemoryJournal) History(_ context.Context, sagaID models.ID) ([]StepRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	history := make([]StepRecord, len(j.records[sagaID]))
	copy(history, j.records[sagaID])
	return history, nil
}
