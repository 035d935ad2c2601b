// Package cli holds the startup steps shared by cmd/budget and cmd/budget-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and installs it as slog's default.
func SetupLogger(cfg *config.Config, component string) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger, nil
}

// LoadConfig loads the configuration and runs validate on it.
func LoadConfig(validate ...func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	for _, v := range validate {
		if err := v(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadCategories returns the category set from CATEGORIES_FILE, or the defaults.
func LoadCategories(cfg *config.Config, logger *log.Logger) (core.CategorySet, error) {
	if cfg.CategoriesFile == "" {
		return core.NewCategorySet(core.DefaultCategories...), nil
	}
	set, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return core.CategorySet{}, err
	}
	logger.Info("Loaded categories", "file", cfg.CategoriesFile, "count", set.Len())
	return set, nil
}

// OpenGateway creates the document gateway selected by DATA_BACKEND.
func OpenGateway(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	return result, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err.Error())
	os.Exit(1)
}
