package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sagaRowColumns = []string{
	"id", "correlation_id", "definition_name", "status", "current_step_index",
	"compensated_count", "last_error", "data", "started_at", "updated_at",
	"completed_at", "version",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func testInstance() *saga.Instance {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	instance := saga.NewInstance("order_fulfillment", "order-1", saga.Data{"order_id": "order-1"}, now)
	instance.ID = models.ID("550e8400-e29b-41d4-a716-446655440000")
	return instance
}

func TestPostgresSagaRepository_Create(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "inserted",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_instances")).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "correlation id taken",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (correlation_id) DO NOTHING")).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedError: saga.ErrDuplicateSaga,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_instances")).
					WillReturnError(errors.New("connection reset"))
			},
			expectedError: errors.New("failed to insert saga: connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			err := NewPostgresSagaRepository(db).Create(context.Background(), testInstance())

			switch {
			case tt.expectedError == nil:
				assert.NoError(t, err)
			case errors.Is(tt.expectedError, saga.ErrDuplicateSaga):
				assert.ErrorIs(t, err, saga.ErrDuplicateSaga)
			default:
				assert.EqualError(t, err, tt.expectedError.Error())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresSagaRepository_Save(t *testing.T) {
	tests := []struct {
		name            string
		setupMock       func(sqlmock.Sqlmock)
		expectedError   error
		expectedVersion int
	}{
		{
			name: "version matches",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_instances")).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectedVersion: 4,
		},
		{
			name: "stale version",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_instances")).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
					WithArgs("550e8400-e29b-41d4-a716-446655440000").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			expectedError:   saga.ErrConcurrentUpdate,
			expectedVersion: 3,
		},
		{
			name: "missing saga",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_instances")).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			expectedError:   saga.ErrSagaNotFound,
			expectedVersion: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			instance := testInstance()
			instance.Version = 3
			err := NewPostgresSagaRepository(db).Save(context.Background(), instance)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedVersion, instance.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresSagaRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSagaRepository(db)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	id := "550e8400-e29b-41d4-a716-446655440000"

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(sagaRowColumns).AddRow(
			id, "order-1", "order_fulfillment", "COMPLETED", 5,
			0, "", `{"order_id":"order-1","payment_id":"pay-1"}`, started, completed,
			completed, 7,
		))

	instance, err := repo.FindByID(context.Background(), models.ID(id))
	require.NoError(t, err)

	assert.Equal(t, models.ID(id), instance.ID)
	assert.Equal(t, saga.StatusCompleted, instance.Status)
	assert.Equal(t, 5, instance.CurrentStepIndex)
	assert.Equal(t, saga.Data{"order_id": "order-1", "payment_id": "pay-1"}, instance.Data)
	require.NotNil(t, instance.CompletedAt)
	assert.Equal(t, completed, *instance.CompletedAt)
	assert.Equal(t, 7, instance.Version)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), models.ID(id))
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSagaRepository_FindByCorrelationID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSagaRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances WHERE correlation_id = $1")).
		WithArgs("order-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCorrelationID(context.Background(), "order-9")
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSagaRepository_FindByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSagaRepository(db)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY started_at ASC")).
		WithArgs("FAILED").
		WillReturnRows(sqlmock.NewRows(sagaRowColumns).
			AddRow("550e8400-e29b-41d4-a716-446655440001", "order-1", "order_fulfillment", "FAILED", 2,
				0, "payment declined", `{}`, started, started, nil, 3).
			AddRow("550e8400-e29b-41d4-a716-446655440002", "order-2", "order_fulfillment", "FAILED", 0,
				0, "order service down", `{}`, started.Add(time.Second), started.Add(time.Second), nil, 1))

	instances, err := repo.FindByStatus(context.Background(), saga.StatusFailed)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "order-1", instances[0].CorrelationID)
	assert.Equal(t, "payment declined", instances[0].LastError)
	assert.Nil(t, instances[0].CompletedAt)
	assert.Equal(t, "order-2", instances[1].CorrelationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSagaRepository_RejectsUnknownStatus(t *testing.T) {
	db, mock := newMockDB(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(sagaRowColumns).AddRow(
			"550e8400-e29b-41d4-a716-446655440000", "order-1", "order_fulfillment", "PAUSED", 0,
			0, "", `{}`, started, started, nil, 0,
		))

	_, err := NewPostgresSagaRepository(db).FindByID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	assert.ErrorContains(t, err, `unknown saga status "PAUSED"`)
}

func TestPostgresStepJournal(t *testing.T) {
	db, mock := newMockDB(t)
	journal := NewPostgresStepJournal(db)
	sagaID := models.ID("550e8400-e29b-41d4-a716-446655440000")
	recorded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_step_log")).
		WithArgs(sagaID.String(), "process_payment", 2, "execute", "failed", "declined", int64(150), recorded).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := journal.Append(context.Background(), saga.StepRecord{
		SagaID:     sagaID,
		StepName:   "process_payment",
		StepIndex:  2,
		Action:     saga.ActionExecute,
		Outcome:    saga.OutcomeFailed,
		Error:      "declined",
		Duration:   150 * time.Millisecond,
		RecordedAt: recorded,
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_step_log")).
		WithArgs(sagaID.String()).
		WillReturnRows(sqlmock.NewRows([]string{
			"saga_id", "step_name", "step_index", "action", "outcome", "error", "duration_ms", "recorded_at",
		}).AddRow(sagaID.String(), "process_payment", 2, "execute", "failed", "declined", 150, recorded))

	history, err := journal.History(context.Background(), sagaID)
	require.NoError(t, err)
	assert.Equal(t, []saga.StepRecord{{
		SagaID:     sagaID,
		StepName:   "process_payment",
		StepIndex:  2,
		Action:     saga.ActionExecute,
		Outcome:    saga.OutcomeFailed,
		Error:      "declined",
		Duration:   150 * time.Millisecond,
		RecordedAt: recorded,
	}}, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSagaRepository_FindByIDKeepsLargeAmounts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresSagaRepository(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := "550e8400-e29b-41d4-a716-446655440000"
	stored := `{"order_id":"order-1","amount":{"amount":9007199254740993,"currency":"USD"}}`

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(sagaRowColumns).AddRow(
			id, "order-1", "order_fulfillment", "IN_PROGRESS", 2,
			0, "", stored, now, now, nil, 3,
		))

	instance, err := repo.FindByID(context.Background(), models.ID(id))
	require.NoError(t, err)

	amount := instance.Data["amount"].(map[string]any)["amount"]
	assert.Equal(t, json.Number("9007199254740993"), amount)

	raw, err := json.Marshal(instance.Data)
	require.NoError(t, err)
	assert.JSONEq(t, stored, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}
