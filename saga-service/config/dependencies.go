package config

import (
	"context"
	"fmt"

	"github.com/draftea/saga-orchestrator/saga-service/application"
	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/saga-service/handlers"
	"github.com/draftea/saga-orchestrator/saga-service/infrastructure"
	sharedinfra "github.com/draftea/saga-orchestrator/shared/infrastructure"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	// Storage
	DB         *sqlx.DB
	Redis      *redis.Client
	Repository saga.Repository
	Journal    saga.StepJournal
	Locker     saga.Locker

	// Engine
	Engine *saga.Engine

	// Use Cases
	StartOrderSaga *application.StartOrderSaga
	AdvanceSaga    *application.AdvanceSaga
	CompensateSaga *application.CompensateSaga
	FailSaga       *application.FailSaga
	GetSaga        *application.GetSaga
	ListSagas      *application.ListSagas
	GetSagaHistory *application.GetSagaHistory
	DriveSagas     *application.DriveSagas

	// HTTP Handlers
	SagaHandlers *handlers.SagaHandlers

	// Event Handlers
	SagaEventHandlers *handlers.SagaEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSEventPublisher
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

// BuildDependencies wires the service. Anything opened before a failure is
// closed again.
func BuildDependencies(ctx context.Context, config *Config, log *logger.Logger) (*Dependencies, error) {
	if log == nil {
		log = logger.Nop()
	}
	deps := &Dependencies{}
	if err := deps.build(ctx, config, log); err != nil {
		_ = deps.Close(ctx, log)
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) build(ctx context.Context, config *Config, log *logger.Logger) error {
	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.SagaServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		telConfig.ServiceName = config.ServiceName
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			// Continue without telemetry rather than failing
			log.Warn("failed to initialize telemetry", "error", err)
		} else {
			d.Telemetry = tel
			d.TelemetryShutdown = telemetryShutdown
		}
	}

	if err := d.buildStorage(ctx, config); err != nil {
		return err
	}

	if err := d.buildLocker(ctx, config); err != nil {
		return err
	}

	// Initialize AWS infrastructure
	if config.AWS.SNSTopicArn != "" || config.AWS.SQSQueueURL != "" {
		awsCfg, err := sharedinfra.LoadAWSConfig(ctx, sharedinfra.AWSConfig{
			Region:   config.AWS.Region,
			Endpoint: config.AWS.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}

		if config.AWS.SNSTopicArn != "" {
			d.EventPublisher = sharedinfra.NewSNSPublisherAdapter(awsCfg, config.AWS.Endpoint, config.AWS.SNSTopicArn, log)
		}
		if config.AWS.SQSQueueURL != "" {
			d.EventSubscriber = sharedinfra.NewSQSSubscriberAdapter(awsCfg, config.AWS.Endpoint, config.AWS.SQSQueueURL, log,
				sharedinfra.WithWorkers(config.AWS.SQSWorkers))
		}
	}

	// Order saga collaborators
	definition, err := domain.NewOrderFulfillmentDefinition(domain.OrderSagaClients{
		Orders:        infrastructure.NewInMemoryOrderClient(),
		Inventory:     infrastructure.NewInMemoryInventoryClient(config.Clients.Stock),
		Payments:      infrastructure.NewInMemoryPaymentClient(config.Clients.PaymentLimit),
		Shipping:      infrastructure.NewInMemoryShippingClient(),
		Notifications: infrastructure.NewLoggingNotificationClient(log),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to build saga definition: %w", err)
	}

	opts := []saga.Option{
		saga.WithJournal(d.Journal),
		saga.WithLogger(log),
		saga.WithStepTimeout(config.Saga.StepTimeout),
	}
	if d.Locker != nil {
		opts = append(opts, saga.WithLocker(d.Locker))
	}
	if d.EventPublisher != nil {
		opts = append(opts, saga.WithPublisher(d.EventPublisher))
	}
	d.Engine = saga.NewEngine(definition, d.Repository, opts...)

	// Initialize use cases
	d.StartOrderSaga = application.NewStartOrderSaga(d.Engine, log)
	d.AdvanceSaga = application.NewAdvanceSaga(d.Engine, log)
	d.CompensateSaga = application.NewCompensateSaga(d.Engine, log)
	d.FailSaga = application.NewFailSaga(d.Engine)
	d.GetSaga = application.NewGetSaga(d.Engine)
	d.ListSagas = application.NewListSagas(d.Engine)
	d.GetSagaHistory = application.NewGetSagaHistory(d.Engine, d.Journal)
	d.DriveSagas = application.NewDriveSagas(d.Engine, application.DriveSagasConfig{
		Concurrency:    config.Saga.DriverConcurrency,
		AutoCompensate: config.Saga.AutoCompensate,
	}, log)

	// Initialize handlers
	d.SagaHandlers = handlers.NewSagaHandlers(
		d.StartOrderSaga,
		d.AdvanceSaga,
		d.CompensateSaga,
		d.FailSaga,
		d.GetSaga,
		d.ListSagas,
		d.GetSagaHistory,
		log,
	)
	d.SagaEventHandlers = handlers.NewSagaEventHandlers(d.StartOrderSaga, d.AdvanceSaga, d.CompensateSaga, log)

	return nil
}

func (d *Dependencies) buildStorage(ctx context.Context, config *Config) error {
	if config.Saga.Storage == StorageMemory {
		d.Repository = saga.NewMemoryRepository()
		d.Journal = saga.NewMemoryJournal()
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", config.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	d.DB = db

	repository := infrastructure.NewPostgresSagaRepository(db)
	if err := repository.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to create saga schema: %w", err)
	}
	journal := infrastructure.NewPostgresStepJournal(db)
	if err := journal.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to create step log schema: %w", err)
	}

	d.Repository = repository
	d.Journal = journal
	return nil
}

func (d *Dependencies) buildLocker(ctx context.Context, config *Config) error {
	switch config.Saga.Lock {
	case LockMemory:
		d.Locker = saga.NewMemoryLocker()
	case LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		d.Redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		d.Locker = infrastructure.NewRedisSagaLocker(client, infrastructure.RedisLockerConfig{
			TTL:  config.Saga.LockTTL,
			Wait: config.Saga.LockWait,
		})
	}
	return nil
}

// Close closes all dependencies
func (d *Dependencies) Close(ctx context.Context, log *logger.Logger) error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		if log != nil {
			log.Error("errors closing dependencies", "errors", errs)
		}
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
