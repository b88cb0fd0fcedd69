package main

import (
	"os"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/config"
	"github.com/septivank/meter-reconciler/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, os.Getenv("LOG_DEBUG") != "")
}

func newFxLogger(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
}
