package saga_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callLog records handler invocations across steps in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeStep struct {
	name string
	log  *callLog

	mu            sync.Mutex
	output        saga.Data
	executeErr    error
	compensateErr error
}

func (s *fakeStep) Execute(_ context.Context, _ saga.Data) (saga.Data, error) {
	s.log.add("execute:" + s.name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	return s.output, nil
}

func (s *fakeStep) Compensate(_ context.Context, _ saga.Data) error {
	s.log.add("compensate:" + s.name)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compensateErr
}

func (s *fakeStep) failExecute(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executeErr = err
}

func (s *fakeStep) failCompensate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compensateErr = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType
	}
	return types
}

// failingSaveRepository wraps a MemoryRepository and rejects Save on demand.
type failingSaveRepository struct {
	*saga.MemoryRepository
	failSave bool
}

func (r *failingSaveRepository) Save(ctx context.Context, instance *saga.Instance) error {
	if r.failSave {
		return errors.New("database unavailable")
	}
	return r.MemoryRepository.Save(ctx, instance)
}

// cancelAfterFindRepository cancels the caller once the saga is loaded and
// refuses to write with a done context, like a SQL driver would.
type cancelAfterFindRepository struct {
	*saga.MemoryRepository
	cancel context.CancelFunc
}

func (r *cancelAfterFindRepository) FindByID(ctx context.Context, id models.ID) (*saga.Instance, error) {
	instance, err := r.MemoryRepository.FindByID(ctx, id)
	r.cancel()
	return instance, err
}

func (r *cancelAfterFindRepository) Save(ctx context.Context, instance *saga.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepository.Save(ctx, instance)
}

// ctxPublisher records whether the context was still usable at publish time.
type ctxPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *ctxPublisher) Publish(ctx context.Context, _ ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, ctx.Err())
	return ctx.Err()
}

type fixture struct {
	engine    *saga.Engine
	repo      *saga.MemoryRepository
	journal   *saga.MemoryJournal
	publisher *recordingPublisher
	steps     map[string]*fakeStep
	log       *callLog
}

func newFixture(t *testing.T, names []string, opts ...saga.Option) *fixture {
	t.Helper()

	f := &fixture{
		repo:      saga.NewMemoryRepository(),
		journal:   saga.NewMemoryJournal(),
		publisher: &recordingPublisher{},
		steps:     make(map[string]*fakeStep),
		log:       &callLog{},
	}

	steps := make([]saga.Step, len(names))
	for i, name := range names {
		step := &fakeStep{name: name, log: f.log, output: saga.Data{name + "_done": true}}
		f.steps[name] = step
		steps[i] = saga.Step{Name: name, Handler: step}
	}

	def, err := saga.NewDefinition("test_saga", steps...)
	require.NoError(t, err)

	opts = append([]saga.Option{
		saga.WithJournal(f.journal),
		saga.WithPublisher(f.publisher),
	}, opts...)
	f.engine = saga.NewEngine(def, f.repo, opts...)

	return f
}

func assertBounds(t *testing.T, instance *saga.Instance, stepCount int) {
	t.Helper()
	assert.GreaterOrEqual(t, instance.CompensatedCount, 0)
	assert.LessOrEqual(t, instance.CompensatedCount, instance.CurrentStepIndex)
	assert.LessOrEqual(t, instance.CurrentStepIndex, stepCount)
}

func TestEngine_Start(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b"})

	instance, err := f.engine.Start(ctx, "order-1", saga.Data{"order_id": "order-1"})
	require.NoError(t, err)
	assert.Equal(t, saga.StatusStarted, instance.Status)
	assert.Equal(t, 0, instance.CurrentStepIndex)
	assert.Equal(t, "test_saga", instance.DefinitionName)
	assert.Empty(t, f.log.list())

	_, err = f.engine.Start(ctx, "order-1", nil)
	assert.ErrorIs(t, err, saga.ErrDuplicateSaga)

	started, err := f.engine.ListByStatus(ctx, saga.StatusStarted)
	require.NoError(t, err)
	assert.Len(t, started, 1)

	_, err = f.engine.Start(ctx, "", nil)
	assert.EqualError(t, err, "correlation id is required")

	assert.Equal(t, []string{events.SagaStartedEvent}, f.publisher.types())
}

func TestEngine_AdvanceToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c"})

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)

	expected := []saga.Status{saga.StatusInProgress, saga.StatusInProgress, saga.StatusCompleted}
	for i, status := range expected {
		instance, err = f.engine.Advance(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, status, instance.Status)
		assert.Equal(t, i+1, instance.CurrentStepIndex)
		assertBounds(t, instance, 3)
	}

	require.NotNil(t, instance.CompletedAt)
	assert.Equal(t, saga.Data{"a_done": true, "b_done": true, "c_done": true}, instance.Data)
	assert.Equal(t, []string{"execute:a", "execute:b", "execute:c"}, f.log.list())

	again, err := f.engine.Advance(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrInvalidState)
	require.NotNil(t, again)
	assert.Equal(t, saga.StatusCompleted, again.Status)
	assert.Equal(t, 3, again.CurrentStepIndex)

	_, err = f.engine.Compensate(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrInvalidState)

	stored, err := f.engine.GetStatus(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance, stored)

	assert.Equal(t, []string{
		events.SagaStartedEvent,
		events.SagaStepCompletedEvent,
		events.SagaStepCompletedEvent,
		events.SagaCompletedEvent,
	}, f.publisher.types())
}

func TestEngine_AdvanceFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c"})
	f.steps["b"].failExecute(errors.New("insufficient stock"))

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)

	instance, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)

	failed, err := f.engine.Advance(ctx, instance.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, saga.ErrStepFailed)
	assert.NotErrorIs(t, err, saga.ErrCompensationFailed)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "b", stepErr.Step)
	assert.Equal(t, 1, stepErr.StepIndex)

	require.NotNil(t, failed)
	assert.Equal(t, saga.StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.CurrentStepIndex)
	assert.Equal(t, "insufficient stock", failed.LastError)
	assert.Nil(t, failed.CompletedAt)

	stored, err := f.engine.GetStatus(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, stored.Status)

	f.steps["b"].failExecute(nil)
	retried, err := f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusInProgress, retried.Status)
	assert.Equal(t, 2, retried.CurrentStepIndex)
	assert.Equal(t, "insufficient stock", retried.LastError)

	assert.Equal(t, []string{"execute:a", "execute:b", "execute:b"}, f.log.list())
}

func TestEngine_CompensateOnlyCompletedSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c"})
	f.steps["b"].failExecute(errors.New("card declined"))

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.ErrorIs(t, err, saga.ErrStepFailed)

	compensated, err := f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, compensated.Status)
	assert.Equal(t, 1, compensated.CompensatedCount)
	assert.Equal(t, 1, compensated.CurrentStepIndex)
	require.NotNil(t, compensated.CompletedAt)
	assertBounds(t, compensated, 3)

	assert.Equal(t, []string{"execute:a", "execute:b", "compensate:a"}, f.log.list())

	_, err = f.engine.Compensate(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrInvalidState)
	_, err = f.engine.Advance(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrInvalidState)

	assert.Equal(t, []string{
		events.SagaStartedEvent,
		events.SagaStepCompletedEvent,
		events.SagaFailedEvent,
		events.SagaCompensatingEvent,
		events.SagaStepCompensatedEvent,
		events.SagaCompensatedEvent,
	}, f.publisher.types())
}

func TestEngine_CompensationFailureResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c", "d"})
	f.steps["d"].failExecute(errors.New("carrier unavailable"))
	f.steps["b"].failCompensate(errors.New("refund service down"))

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.engine.Advance(ctx, instance.ID)
		require.NoError(t, err)
	}
	_, err = f.engine.Advance(ctx, instance.ID)
	require.ErrorIs(t, err, saga.ErrStepFailed)

	partial, err := f.engine.Compensate(ctx, instance.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, saga.ErrCompensationFailed)
	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "b", stepErr.Step)

	require.NotNil(t, partial)
	assert.Equal(t, saga.StatusCompensating, partial.Status)
	assert.Equal(t, 1, partial.CompensatedCount)
	assert.Equal(t, "refund service down", partial.LastError)
	assertBounds(t, partial, 4)

	_, err = f.engine.Advance(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrInvalidState)
	_, err = f.engine.Fail(ctx, instance.ID, "operator")
	assert.ErrorIs(t, err, saga.ErrInvalidState)

	f.steps["b"].failCompensate(nil)
	done, err := f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, done.Status)
	assert.Equal(t, 3, done.CompensatedCount)

	assert.Equal(t, []string{
		"execute:a", "execute:b", "execute:c", "execute:d",
		"compensate:c", "compensate:b",
		"compensate:b", "compensate:a",
	}, f.log.list())
}

func TestEngine_CompensateWithoutCompletedSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b"})

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)

	compensated, err := f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, compensated.Status)
	assert.Equal(t, 0, compensated.CompensatedCount)
	assert.Empty(t, f.log.list())
}

func TestEngine_CompensateInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c"})

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)

	compensated, err := f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, compensated.Status)
	assert.Equal(t, 2, compensated.CompensatedCount)
	assert.Equal(t, []string{"execute:a", "execute:b", "compensate:b", "compensate:a"}, f.log.list())
}

func TestEngine_StepTimeout(t *testing.T) {
	blocking := saga.StepFuncs{
		ExecuteFunc: func(ctx context.Context, _ saga.Data) (saga.Data, error) {
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			return saga.Data{"late": true}, nil
		},
	}

	tests := []struct {
		name        string
		stepTimeout time.Duration
		opts        []saga.Option
		callerCtx   func() (context.Context, context.CancelFunc)
	}{
		{
			name:        "per step timeout",
			stepTimeout: 20 * time.Millisecond,
			callerCtx:   func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
		},
		{
			name:      "engine default timeout",
			opts:      []saga.Option{saga.WithStepTimeout(20 * time.Millisecond)},
			callerCtx: func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
		},
		{
			name: "caller deadline",
			callerCtx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := saga.NewDefinition("timeouts", saga.Step{Name: "slow", Handler: blocking, Timeout: tt.stepTimeout})
			require.NoError(t, err)
			repo := saga.NewMemoryRepository()
			engine := saga.NewEngine(def, repo, tt.opts...)

			instance, err := engine.Start(context.Background(), "order-1", nil)
			require.NoError(t, err)

			ctx, cancel := tt.callerCtx()
			defer cancel()

			failed, err := engine.Advance(ctx, instance.ID)
			assert.ErrorIs(t, err, saga.ErrStepFailed)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			require.NotNil(t, failed)
			assert.Equal(t, saga.StatusFailed, failed.Status)
			assert.Equal(t, 0, failed.CurrentStepIndex)
			assert.NotContains(t, failed.Data, "late")

			stored, err := repo.FindByID(context.Background(), instance.ID)
			require.NoError(t, err)
			assert.Equal(t, saga.StatusFailed, stored.Status)
		})
	}
}

func TestEngine_StepPanicIsFailure(t *testing.T) {
	def, err := saga.NewDefinition("panics", saga.Step{
		Name: "explode",
		Handler: saga.StepFuncs{
			ExecuteFunc: func(context.Context, saga.Data) (saga.Data, error) { panic("nil map") },
		},
	})
	require.NoError(t, err)
	engine := saga.NewEngine(def, saga.NewMemoryRepository())

	instance, err := engine.Start(context.Background(), "order-1", nil)
	require.NoError(t, err)

	failed, err := engine.Advance(context.Background(), instance.ID)
	assert.ErrorIs(t, err, saga.ErrStepFailed)
	require.NotNil(t, failed)
	assert.Equal(t, saga.StatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "panicked: nil map")
}

func TestEngine_ConcurrentAdvanceConflict(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)

	def, err := saga.NewDefinition("race",
		saga.Step{
			Name: "first",
			Handler: saga.StepFuncs{
				ExecuteFunc: func(context.Context, saga.Data) (saga.Data, error) {
					// Both callers have loaded version 0 once they get here.
					arrived.Done()
					arrived.Wait()
					return nil, nil
				},
			},
		},
		noopStep("second"),
	)
	require.NoError(t, err)

	repo := saga.NewMemoryRepository()
	engine := saga.NewEngine(def, repo, saga.WithStepTimeout(5*time.Second))

	instance, err := engine.Start(context.Background(), "order-1", nil)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Advance(context.Background(), instance.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, saga.ErrConcurrentUpdate):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stored, err := repo.FindByID(context.Background(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStepIndex)
	assert.Equal(t, 1, stored.Version)
}

func TestEngine_ConcurrentAdvanceWithLocker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b", "c"}, saga.WithLocker(saga.NewMemoryLocker()))

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Advance(ctx, instance.ID)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	stored, err := f.engine.GetStatus(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStepIndex)
	assert.Equal(t, []string{"execute:a", "execute:b"}, f.log.list())
}

func TestEngine_PersistenceFailureLeavesStoredState(t *testing.T) {
	ctx := context.Background()
	repo := &failingSaveRepository{MemoryRepository: saga.NewMemoryRepository()}
	def, err := saga.NewDefinition("def", noopStep("a"), noopStep("b"))
	require.NoError(t, err)
	engine := saga.NewEngine(def, repo)

	instance, err := engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)

	repo.failSave = true
	result, err := engine.Advance(ctx, instance.ID)
	assert.Nil(t, result)
	assert.EqualError(t, err, "failed to save saga "+instance.ID.String()+": database unavailable")

	result, err = engine.Compensate(ctx, instance.ID)
	assert.Nil(t, result)
	assert.Error(t, err)

	stored, err := engine.GetStatus(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusStarted, stored.Status)
	assert.Equal(t, 0, stored.CurrentStepIndex)
	assert.Equal(t, 0, stored.Version)
}

func TestEngine_FailedStepCannotReachStoredData(t *testing.T) {
	ctx := context.Background()
	repo := &failingSaveRepository{MemoryRepository: saga.NewMemoryRepository()}
	def, err := saga.NewDefinition("def", saga.Step{Name: "charge", Handler: saga.StepFuncs{
		ExecuteFunc: func(_ context.Context, data saga.Data) (saga.Data, error) {
			data["amount"].(map[string]any)["amount"] = 1.0
			data["items"].([]any)[0] = "tampered"
			return nil, errors.New("declined")
		},
	}})
	require.NoError(t, err)
	engine := saga.NewEngine(def, repo)

	instance, err := engine.Start(ctx, "order-1", saga.Data{
		"amount": map[string]any{"amount": 5000.0, "currency": "USD"},
		"items":  []any{"sku-1"},
	})
	require.NoError(t, err)

	repo.failSave = true
	result, err := engine.Advance(ctx, instance.ID)
	assert.Nil(t, result)
	require.Error(t, err)

	stored, err := repo.FindByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusStarted, stored.Status)
	assert.Equal(t, 0, stored.Version)
	assert.Equal(t, 5000.0, stored.Data["amount"].(map[string]any)["amount"])
	assert.Equal(t, []any{"sku-1"}, stored.Data["items"])

	// The step also fails with a working store; only the FAILED transition is kept.
	repo.failSave = false
	failed, err := engine.Advance(ctx, instance.ID)
	assert.ErrorIs(t, err, saga.ErrStepFailed)
	require.NotNil(t, failed)
	assert.Equal(t, saga.StatusFailed, failed.Status)
	assert.Equal(t, 5000.0, failed.Data["amount"].(map[string]any)["amount"])
}

func TestEngine_FailSurvivesCallerCancellation(t *testing.T) {
	memory := saga.NewMemoryRepository()
	def, err := saga.NewDefinition("def", noopStep("a"), noopStep("b"))
	require.NoError(t, err)

	instance, err := saga.NewEngine(def, memory).Start(context.Background(), "order-1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher := &ctxPublisher{}
	engine := saga.NewEngine(def, &cancelAfterFindRepository{MemoryRepository: memory, cancel: cancel},
		saga.WithPublisher(publisher))

	failed, err := engine.Fail(ctx, instance.ID, "client went away")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, failed.Status)

	stored, err := memory.FindByID(context.Background(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, stored.Status)
	assert.Equal(t, "client went away", stored.LastError)
	assert.Equal(t, []error{nil}, publisher.errs)
}

func TestEngine_Fail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b"})

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)

	failed, err := f.engine.Fail(ctx, instance.ID, "customer cancelled")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, failed.Status)
	assert.Equal(t, "customer cancelled", failed.LastError)
	assert.Equal(t, 1, failed.CurrentStepIndex)

	_, err = f.engine.Fail(ctx, instance.ID, "")
	assert.ErrorIs(t, err, saga.ErrInvalidState)

	compensated, err := f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, compensated.Status)
	assert.Equal(t, []string{"execute:a", "compensate:a"}, f.log.list())

	fresh, err := f.engine.Start(ctx, "order-2", nil)
	require.NoError(t, err)
	failed, err = f.engine.Fail(ctx, fresh.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "failed by operator", failed.LastError)
}

func TestEngine_UnknownSaga(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a"})
	id := models.GenerateUUID()

	_, err := f.engine.GetStatus(ctx, id)
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	_, err = f.engine.Advance(ctx, id)
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	_, err = f.engine.Compensate(ctx, id)
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	_, err = f.engine.Fail(ctx, id, "")
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	_, err = f.engine.FindByCorrelationID(ctx, "missing")
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
}

func TestEngine_JournalAndPublisherFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a", "b"})
	f.publisher.err = errors.New("sns throttled")
	f.steps["b"].failExecute(errors.New("boom"))

	instance, err := f.engine.Start(ctx, "order-1", nil)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.ErrorIs(t, err, saga.ErrStepFailed)
	_, err = f.engine.Compensate(ctx, instance.ID)
	require.NoError(t, err)

	history, err := f.journal.History(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "a", history[0].StepName)
	assert.Equal(t, saga.ActionExecute, history[0].Action)
	assert.Equal(t, saga.OutcomeSucceeded, history[0].Outcome)

	assert.Equal(t, "b", history[1].StepName)
	assert.Equal(t, 1, history[1].StepIndex)
	assert.Equal(t, saga.OutcomeFailed, history[1].Outcome)
	assert.Equal(t, "boom", history[1].Error)

	assert.Equal(t, "a", history[2].StepName)
	assert.Equal(t, saga.ActionCompensate, history[2].Action)

	byCorrelation, err := f.engine.FindByCorrelationID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, byCorrelation.Status)
}

func TestEngine_LifecycleEventPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"a"})

	instance, err := f.engine.Start(ctx, "order-7", nil)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, instance.ID)
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	completed := f.publisher.events[1]
	assert.Equal(t, instance.ID, completed.AggregateID)
	assert.Equal(t, "order-7", completed.CorrelationID)
	assert.Equal(t, "test_saga", completed.Metadata["definition"])

	var payload saga.LifecycleEvent
	require.NoError(t, completed.UnmarshalPayload(&payload))
	assert.Equal(t, saga.StatusCompleted, payload.Status)
	assert.Equal(t, "a", payload.Step)
	assert.Equal(t, 1, payload.CurrentStepIndex)
}
