package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/anomaly"
	"github.com/septivank/meter-reconciler/internal/config"
	"github.com/septivank/meter-reconciler/internal/db"
	"github.com/septivank/meter-reconciler/internal/mq"
	"github.com/septivank/meter-reconciler/internal/primary"
	"github.com/septivank/meter-reconciler/internal/reconcile"
	"github.com/septivank/meter-reconciler/internal/repository"
	"github.com/septivank/meter-reconciler/internal/secondary"
	"github.com/septivank/meter-reconciler/internal/service"
	"github.com/septivank/meter-reconciler/internal/source"
	"github.com/septivank/meter-reconciler/internal/validator"
)

// ProvideCredentialLoader creates the credentials file loader
func ProvideCredentialLoader(cfg *config.Config, logger *zap.Logger) service.CredentialSource {
	loader := config.NewCredentialLoader(cfg.Credentials.Path)
	logger.Info("using credentials file", zap.String("path", loader.Path()))
	return loader
}

// ProvidePrimaryClient creates the property-management backend client
func ProvidePrimaryClient(cfg *config.Config, logger *zap.Logger) (source.Primary, error) {
	return primary.NewClient(cfg.Primary.BaseURL, cfg.Primary.Timeout, logger.Named("primary"))
}

// ProvideSecondaryClient creates the telemetry service client
func ProvideSecondaryClient(cfg *config.Config, logger *zap.Logger) source.Secondary {
	return secondary.NewClient(cfg.Secondary.BaseURL, cfg.Secondary.Timeout, logger.Named("secondary"))
}

// ProvideEngine creates the reconciliation engine
func ProvideEngine() *reconcile.Engine {
	return reconcile.NewEngine()
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.RequestToleranceMinutes)
}

// ProvideJournal creates the run journal, or nil when no database is configured
func ProvideJournal(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (service.RunJournal, error) {
	if !cfg.Database.Enabled() {
		logger.Info("DATABASE_URL not set, run journal disabled")
		return nil, nil
	}

	pool, err := db.NewPool(lc, logger, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	repo := repository.NewRepository(pool)

	// Appended after the pool's ping hook, so the database is reachable here
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.EnsureSchema(ctx)
		},
	})

	return repo, nil
}

// ProvideMQConnection creates a RabbitMQ connection, or nil when no broker is configured
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled() {
		logger.Info("RABBITMQ_URL not set, event publishing disabled")
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the event publisher, or nil without a broker
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	if conn == nil {
		return nil, nil
	}

	publisher, err := mq.NewPublisher(conn, mq.PublisherConfig{
		Exchange:          cfg.RabbitMQ.EventsExchange,
		ReadingRoutingKey: cfg.RabbitMQ.ReadingRoutingKey,
		RunDoneRoutingKey: cfg.RabbitMQ.RunDoneRoutingKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideRunService creates a new run service instance
func ProvideRunService(
	creds service.CredentialSource,
	primaryClient source.Primary,
	secondaryClient source.Secondary,
	engine *reconcile.Engine,
	detector *anomaly.Detector,
	publisher service.EventPublisher,
	journal service.RunJournal,
	cfg *config.Config,
	logger *zap.Logger,
) *service.RunService {
	return service.NewRunService(service.Deps{
		Credentials: creds,
		Primary:     primaryClient,
		Secondary:   secondaryClient,
		Engine:      engine,
		Detector:    detector,
		Publisher:   publisher,
		Journal:     journal,
		Config:      cfg,
		Logger:      logger,
	})
}

// ProvideRequestHandler creates the broker run request handler
func ProvideRequestHandler(runSvc *service.RunService, v *validator.Validator, logger *zap.Logger) *service.RequestHandler {
	return service.NewRequestHandler(runSvc, v, logger)
}
