package infrastructure

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ saga.StepJournal = (*PostgresStepJournal)(nil)

const stepLogSchema = `
	CREATE TABLE IF NOT EXISTS saga_step_log (
		id          BIGSERIAL PRIMARY KEY,
		saga_id     UUID NOT NULL,
		step_name   TEXT NOT NULL,
		step_index  INTEGER NOT NULL,
		action      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_saga_step_log_saga ON saga_step_log (saga_id, id);`

// PostgresStepJournal keeps the step history in an append-only table
type PostgresStepJournal struct {
	db *sqlx.DB
}

func NewPostgresStepJournal(db *sqlx.DB) *PostgresStepJournal {
	return &PostgresStepJournal{db: db}
}

type postgresStepRecord struct {
	SagaID     string    `db:"saga_id"`
	StepName   string    `db:"step_name"`
	StepIndex  int       `db:"step_index"`
	Action     string    `db:"action"`
	Outcome    string    `db:"outcome"`
	Error      string    `db:"error"`
	DurationMs int64     `db:"duration_ms"`
	RecordedAt time.Time `db:"recorded_at"`
}

func (j *PostgresStepJournal) InitSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, stepLogSchema); err != nil {
		return errors.Wrap(err, "failed to create step log schema")
	}
	return nil
}

func (j *PostgresStepJournal) Append(ctx context.Context, record saga.StepRecord) error {
	query := `
		INSERT INTO saga_step_log (
			saga_id, step_name, step_index, action, outcome, error,
			duration_ms, recorded_at
		) VALUES (
			:saga_id, :step_name, :step_index, :action, :outcome, :error,
			:duration_ms, :recorded_at
		)`

	_, err := j.db.NamedExecContext(ctx, query, postgresStepRecord{
		SagaID:     record.SagaID.String(),
		StepName:   record.StepName,
		StepIndex:  record.StepIndex,
		Action:     string(record.Action),
		Outcome:    string(record.Outcome),
		Error:      record.Error,
		DurationMs: record.Duration.Milliseconds(),
		RecordedAt: record.RecordedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to append step record")
	}

	return nil
}

// History returns the records of a saga in the order they were appended
func (j *PostgresStepJournal) History(ctx context.Context, sagaID models.ID) ([]saga.StepRecord, error) {
	query := `
		SELECT saga_id, step_name, step_index, action, outcome, error,
			   duration_ms, recorded_at
		FROM saga_step_log
		WHERE saga_id = $1
		ORDER BY id ASC`

	var rows []postgresStepRecord
	if err := j.db.SelectContext(ctx, &rows, query, sagaID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to load step history")
	}

	history := make([]saga.StepRecord, len(rows))
	for i, row := range rows {
		history[i] = saga.StepRecord{
			SagaID:     models.ID(row.SagaID),
			StepName:   row.StepName,
			StepIndex:  row.StepIndex,
			Action:     saga.Action(row.Action),
			Outcome:    saga.Outcome(row.Outcome),
			Error:      row.Error,
			Duration:   time.Duration(row.DurationMs) * time.Millisecond,
			RecordedAt: row.RecordedAt,
		}
	}

	return history, nil
}
