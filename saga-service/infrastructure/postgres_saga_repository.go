package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ saga.Repository = (*PostgresSagaRepository)(nil)

const sagaSchema = `
	CREATE TABLE IF NOT EXISTS saga_instances (
		id                 UUID PRIMARY KEY,
		correlation_id     TEXT NOT NULL UNIQUE,
		definition_name    TEXT NOT NULL,
		status             TEXT NOT NULL,
		current_step_index INTEGER NOT NULL DEFAULT 0,
		compensated_count  INTEGER NOT NULL DEFAULT 0,
		last_error         TEXT NOT NULL DEFAULT '',
		data               JSONB NOT NULL,
		started_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		completed_at       TIMESTAMPTZ,
		version            INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_saga_instances_status ON saga_instances (status, started_at);`

const sagaColumns = `
	id, correlation_id, definition_name, status, current_step_index,
	compensated_count, last_error, data, started_at, updated_at,
	completed_at, version`

// PostgresSagaRepository implements saga.Repository using PostgreSQL
type PostgresSagaRepository struct {
	db *sqlx.DB
}

func NewPostgresSagaRepository(db *sqlx.DB) *PostgresSagaRepository {
	return &PostgresSagaRepository{db: db}
}

// postgresSaga represents a saga instance in database
type postgresSaga struct {
	ID               string     `db:"id"`
	CorrelationID    string     `db:"correlation_id"`
	DefinitionName   string     `db:"definition_name"`
	Status           string     `db:"status"`
	CurrentStepIndex int        `db:"current_step_index"`
	CompensatedCount int        `db:"compensated_count"`
	LastError        string     `db:"last_error"`
	Data             string     `db:"data"`
	StartedAt        time.Time  `db:"started_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	Version          int        `db:"version"`
}

// InitSchema creates the saga tables if they are missing
func (r *PostgresSagaRepository) InitSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sagaSchema); err != nil {
		return errors.Wrap(err, "failed to create saga schema")
	}
	return nil
}

// Create inserts a new saga; the correlation id must be unused
func (r *PostgresSagaRepository) Create(ctx context.Context, instance *saga.Instance) error {
	query := `
		INSERT INTO saga_instances (` + sagaColumns + `
		) VALUES (
			:id, :correlation_id, :definition_name, :status, :current_step_index,
			:compensated_count, :last_error, :data, :started_at, :updated_at,
			:completed_at, :version
		)
		ON CONFLICT (correlation_id) DO NOTHING`

	pgSaga, err := r.toPostgres(instance)
	if err != nil {
		return err
	}

	result, err := r.db.NamedExecContext(ctx, query, pgSaga)
	if err != nil {
		return errors.Wrap(err, "failed to insert saga")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read insert result")
	}
	if rows == 0 {
		return errors.Wrapf(saga.ErrDuplicateSaga, "correlation id %s", instance.CorrelationID)
	}

	return nil
}

// Save updates a saga if nobody else saved it since it was loaded
func (r *PostgresSagaRepository) Save(ctx context.Context, instance *saga.Instance) error {
	query := `
		UPDATE saga_instances
		SET status = :status,
			current_step_index = :current_step_index,
			compensated_count = :compensated_count,
			last_error = :last_error,
			data = :data,
			updated_at = :updated_at,
			completed_at = :completed_at,
			version = :version + 1
		WHERE id = :id AND version = :version`

	pgSaga, err := r.toPostgres(instance)
	if err != nil {
		return err
	}

	result, err := r.db.NamedExecContext(ctx, query, pgSaga)
	if err != nil {
		return errors.Wrap(err, "failed to update saga")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			"SELECT EXISTS (SELECT 1 FROM saga_instances WHERE id = $1)", instance.ID.String()); err != nil {
			return errors.Wrap(err, "failed to check saga existence")
		}
		if !exists {
			return errors.Wrapf(saga.ErrSagaNotFound, "saga %s", instance.ID)
		}
		return errors.Wrapf(saga.ErrConcurrentUpdate, "saga %s at version %d", instance.ID, instance.Version)
	}

	instance.Version++
	return nil
}

func (r *PostgresSagaRepository) FindByID(ctx context.Context, id models.ID) (*saga.Instance, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_instances WHERE id = $1`

	var pgSaga postgresSaga
	if err := r.db.GetContext(ctx, &pgSaga, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(saga.ErrSagaNotFound, "saga %s", id)
		}
		return nil, errors.Wrap(err, "failed to find saga")
	}

	return r.toDomain(&pgSaga)
}

func (r *PostgresSagaRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*saga.Instance, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_instances WHERE correlation_id = $1`

	var pgSaga postgresSaga
	if err := r.db.GetContext(ctx, &pgSaga, query, correlationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(saga.ErrSagaNotFound, "correlation id %s", correlationID)
		}
		return nil, errors.Wrap(err, "failed to find saga by correlation id")
	}

	return r.toDomain(&pgSaga)
}

// FindByStatus returns sagas in status, oldest first
func (r *PostgresSagaRepository) FindByStatus(ctx context.Context, status saga.Status) ([]*saga.Instance, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_instances WHERE status = $1 ORDER BY started_at ASC`

	var pgSagas []postgresSaga
	if err := r.db.SelectContext(ctx, &pgSagas, query, status.String()); err != nil {
		return nil, errors.Wrap(err, "failed to find sagas by status")
	}

	instances := make([]*saga.Instance, len(pgSagas))
	for i := range pgSagas {
		instance, err := r.toDomain(&pgSagas[i])
		if err != nil {
			return nil, err
		}
		instances[i] = instance
	}

	return instances, nil
}

func (r *PostgresSagaRepository) toPostgres(instance *saga.Instance) (*postgresSaga, error) {
	data, err := json.Marshal(instance.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal saga data")
	}

	return &postgresSaga{
		ID:               instance.ID.String(),
		CorrelationID:    instance.CorrelationID,
		DefinitionName:   instance.DefinitionName,
		Status:           instance.Status.String(),
		CurrentStepIndex: instance.CurrentStepIndex,
		CompensatedCount: instance.CompensatedCount,
		LastError:        instance.LastError,
		Data:             string(data),
		StartedAt:        instance.StartedAt,
		UpdatedAt:        instance.UpdatedAt,
		CompletedAt:      instance.CompletedAt,
		Version:          instance.Version,
	}, nil
}

func (r *PostgresSagaRepository) toDomain(pgSaga *postgresSaga) (*saga.Instance, error) {
	id, err := models.NewID(pgSaga.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	status, err := saga.ParseStatus(pgSaga.Status)
	if err != nil {
		return nil, err
	}

	data := saga.Data{}
	if len(pgSaga.Data) > 0 {
		if data, err = saga.UnmarshalData([]byte(pgSaga.Data)); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal saga data")
		}
	}

	return &saga.Instance{
		ID:               id,
		CorrelationID:    pgSaga.CorrelationID,
		DefinitionName:   pgSaga.DefinitionName,
		Status:           status,
		CurrentStepIndex: pgSaga.CurrentStepIndex,
		CompensatedCount: pgSaga.CompensatedCount,
		LastError:        pgSaga.LastError,
		Data:             data,
		StartedAt:        pgSaga.StartedAt,
		UpdatedAt:        pgSaga.UpdatedAt,
		CompletedAt:      pgSaga.CompletedAt,
		Version:          pgSaga.Version,
	}, nil
}
