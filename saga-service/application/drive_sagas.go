package application

import (
	"context"
	"sync"
	"time"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DriveReport summarizes one driver pass
type DriveReport struct {
	Steps       int `json:"steps"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Compensated int `json:"compensated"`
	Stuck       int `json:"stuck"`
	Conflicts   int `json:"conflicts"`
	Errors      int `json:"errors"`
}

func (r DriveReport) empty() bool {
	return r == DriveReport{}
}

type DriveSagasConfig struct {
	Concurrency    int
	AutoCompensate bool
}

// DriveSagas pushes open sagas forward without an external trigger. Running
// sagas are advanced until they complete or fail, COMPENSATING sagas resume
// their compensation, and with AutoCompensate a saga that fails during the
// pass is compensated right away. Sagas already FAILED before the pass are
// left for an operator to retry or compensate.
type DriveSagas struct {
	engine         domain.SagaEngine
	log            *logger.Logger
	concurrency    int
	autoCompensate bool
}

func NewDriveSagas(engine domain.SagaEngine, cfg DriveSagasConfig, log *logger.Logger) *DriveSagas {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &DriveSagas{
		engine:         engine,
		log:            log.With("component", "saga_driver"),
		concurrency:    cfg.Concurrency,
		autoCompensate: cfg.AutoCompensate,
	}
}

// Run executes a pass every interval until ctx is done.
func (uc *DriveSagas) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	uc.log.Info("saga driver started", "interval", interval, "concurrency", uc.concurrency,
		"auto_compensate", uc.autoCompensate)

	for {
		select {
		case <-ctx.Done():
			uc.log.Info("saga driver stopped")
			return nil
		case <-ticker.C:
			report, err := uc.Execute(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				uc.log.Error("saga driver pass failed", "error", err)
				continue
			}
			if !report.empty() {
				uc.log.Info("saga driver pass finished", "report", report)
			}
		}
	}
}

type driveTarget struct {
	id     models.ID
	status saga.Status
}

// Execute runs a single pass.
func (uc *DriveSagas) Execute(ctx context.Context) (DriveReport, error) {
	var targets []driveTarget
	for _, status := range []saga.Status{saga.StatusStarted, saga.StatusInProgress, saga.StatusCompensating} {
		instances, err := uc.engine.ListByStatus(ctx, status)
		if err != nil {
			return DriveReport{}, errors.Wrap(err, "failed to load open sagas")
		}
		for _, instance := range instances {
			targets = append(targets, driveTarget{id: instance.ID, status: instance.Status})
		}
	}

	var (
		mu     sync.Mutex
		report DriveReport
	)
	record := func(fn func(r *DriveReport)) {
		mu.Lock()
		fn(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			if target.status == saga.StatusCompensating {
				uc.compensate(gctx, target.id, record)
				return nil
			}
			uc.drive(gctx, target.id, record)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	telemetry.RecordCounter(ctx, "saga_driver_passes_total", "Saga driver passes", 1,
		attribute.Bool("auto_compensate", uc.autoCompensate))

	return report, ctx.Err()
}

func (uc *DriveSagas) drive(ctx context.Context, id models.ID, record func(func(*DriveReport))) {
	for ctx.Err() == nil {
		instance, err := uc.engine.Advance(ctx, id)
		switch {
		case err == nil:
			record(func(r *DriveReport) { r.Steps++ })
			if instance.Status == saga.StatusCompleted {
				record(func(r *DriveReport) { r.Completed++ })
				return
			}
		case errors.Is(err, saga.ErrStepFailed):
			record(func(r *DriveReport) { r.Steps++; r.Failed++ })
			if uc.autoCompensate {
				uc.compensate(ctx, id, record)
			}
			return
		default:
			uc.recordError(id, "advance", err, record)
			return
		}
	}
}

func (uc *DriveSagas) compensate(ctx context.Context, id models.ID, record func(func(*DriveReport))) {
	_, err := uc.engine.Compensate(ctx, id)
	switch {
	case err == nil:
		record(func(r *DriveReport) { r.Compensated++ })
	case errors.Is(err, saga.ErrCompensationFailed):
		// Stays COMPENSATING; the next pass retries the failed step.
		record(func(r *DriveReport) { r.Stuck++ })
	default:
		uc.recordError(id, "compensate", err, record)
	}
}

func (uc *DriveSagas) recordError(id models.ID, op string, err error, record func(func(*DriveReport))) {
	switch {
	case errors.Is(err, saga.ErrConcurrentUpdate), errors.Is(err, saga.ErrInvalidState):
		// Someone else moved the saga since it was listed.
		record(func(r *DriveReport) { r.Conflicts++ })
		uc.log.Debug("saga skipped by driver", "saga_id", id, "op", op, "error", err)
	default:
		record(func(r *DriveReport) { r.Errors++ })
		uc.log.Error("saga driver error", "saga_id", id, "op", op, "error", err)
	}
}
