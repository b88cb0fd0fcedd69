package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/config"
	"github.com/septivank/meter-reconciler/internal/service"
)

const lifecycleTimeout = 30 * time.Second

func main() {
	loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}

	switch cfg.Mode {
	case config.ModeWorker:
		os.Exit(runWorker(cfg))
	default:
		os.Exit(runOnce(cfg))
	}
}

// loadDotEnv loads the first .env found in the working directory or its parents
func loadDotEnv() {
	envPaths := []string{".env"}
	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		envPaths = append(envPaths,
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			absPath, _ := filepath.Abs(envPath)
			fmt.Fprintf(os.Stderr, "Loaded environment from: %s\n", absPath)
			return
		}
	}
}

func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.WithLogger(newFxLogger),
		fx.Provide(
			newLogger,
			ProvideCredentialLoader,
			ProvidePrimaryClient,
			ProvideSecondaryClient,
			ProvideEngine,
			ProvideAnomalyDetector,
			ProvideValidator,
			ProvideJournal,
			ProvideMQConnection,
			ProvidePublisher,
			ProvideRunService,
			ProvideRequestHandler,
		),
	)
}

// runOnce performs a single run and prints the reconciled records as JSON
func runOnce(cfg *config.Config) int {
	var (
		runSvc *service.RunService
		logger *zap.Logger
	)
	app := fx.New(appOptions(cfg), fx.Populate(&runSvc, &logger))
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to build application:", err)
		return 1
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		logger.Error("failed to start application", zap.Error(err))
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Error("error stopping app", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := runSvc.Run(ctx, service.RunRequest{})
	if err != nil {
		var stageError *service.StageError
		if errors.As(err, &stageError) {
			fmt.Fprintf(os.Stderr, "run aborted at stage %s: %v\n", stageError.Stage, stageError.Err)
		} else {
			fmt.Fprintln(os.Stderr, "run aborted:", err)
		}
		return 1
	}

	fmt.Fprintf(os.Stderr, "Updated readings: %d/%d (site %d)\n",
		result.Report.Matched, result.Report.Total(), result.Site.ID)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Report.Records); err != nil {
		logger.Error("failed to write records", zap.Error(err))
		return 1
	}
	return 0
}

// runWorker consumes run requests until interrupted
func runWorker(cfg *config.Config) int {
	var logger *zap.Logger
	app := fx.New(appOptions(cfg), fx.Populate(&logger), fx.Invoke(startWorker))
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to build application:", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting worker", zap.Duration("timeout", lifecycleTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			logger.Error("application did not start within the timeout; check that RabbitMQ and the database are reachable")
		}
		logger.Error("failed to start application", zap.Error(err))
		return 1
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("error stopping app", zap.Error(err))
		return 1
	}
	return 0
}
