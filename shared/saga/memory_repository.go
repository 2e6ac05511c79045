package saga

import (
	"context"
	"sort"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps instances in process memory. Stored values are
// private copies; callers never share maps with the store.
type MemoryRepository struct {
	byID          *xsync.MapOf[models.ID, *Instance]
	byCorrelation *xsync.MapOf[string, models.ID]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:          xsync.NewMapOf[models.ID, *Instance](),
		byCorrelation: xsync.NewMapOf[string, models.ID](),
	}
}

func (r *MemoryRepository) Create(_ context.Context, instance *Instance) error {
	if _, loaded := r.byCorrelation.LoadOrStore(instance.CorrelationID, instance.ID); loaded {
		return errors.Wrapf(ErrDuplicateSaga, "correlation id %s", instance.CorrelationID)
	}
	r.byID.Store(instance.ID, instance.Clone())
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, instance *Instance) error {
	var saveErr error
	r.byID.Compute(instance.ID, func(stored *Instance, loaded bool) (*Instance, bool) {
		if !loaded {
			saveErr = errors.Wrapf(ErrSagaNotFound, "saga %s", instance.ID)
			return nil, true
		}
		if stored.Version != instance.Version {
			saveErr = errors.Wrapf(ErrConcurrentUpdate, "saga %s: stored version %d, got %d",
				instance.ID, stored.Version, instance.Version)
			return stored, false
		}
		next := instance.Clone()
		next.Version++
		return next, false
	})
	if saveErr != nil {
		return saveErr
	}

	instance.Version++
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id models.ID) (*Instance, error) {
	stored, ok := r.byID.Load(id)
	if !ok {
		return nil, errors.Wrapf(ErrSagaNotFound, "saga %s", id)
	}
	return stored.Clone(), nil
}

func (r *MemoryRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*Instance, error) {
	id, ok := r.byCorrelation.Load(correlationID)
	if !ok {
		return nil, errors.Wrapf(ErrSagaNotFound, "correlation id %s", correlationID)
	}
	return r.FindByID(ctx, id)
}

// FindByStatus returns matching instances oldest first.
func (r *MemoryRepository) FindByStatus(_ context.Context, status Status) ([]*Instance, error) {
	var found []*Instance
	r.byID.Range(func(_ models.ID, stored *Instance) bool {
		if stored.Status == status {
			found = append(found, stored.Clone())
		}
		return true
	})

	sort.Slice(found, func(i, j int) bool {
		return found[i].StartedAt.Before(found[j].StartedAt)
	})
	return found, nil
}
