package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
)

const (
	initTimeout     = 15 * time.Second
	shutdownTimeout = 30 * time.Second
	// new-month check; the calendar month can roll over while the process runs
	monthRollSchedule = "@every 10m"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, log.ComponentApp)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Budget server failed", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	categories, err := cli.LoadCategories(cfg, logger)
	if err != nil {
		return err
	}
	defaultBudget, err := cfg.DefaultBudgetAmount()
	if err != nil {
		return err
	}

	gw, err := cli.OpenGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if gw.Cleanup != nil {
		defer func() {
			if err := gw.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
			}
		}()
	}

	// Change notifications are optional; the page works without a broker.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled",
				log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeNetwork)
		} else {
			defer client.Close()
			notifier = client
			logger.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	persister := services.NewPersister(gw.Gateway, notifier, services.PersisterConfig{
		SaveTimeout:   cfg.SaveTimeout,
		RetrySchedule: cfg.SaveRetrySchedule,
	}, logger)
	store := services.NewBudgetStore(gw.Gateway, persister, services.StoreConfig{
		DefaultBudget: defaultBudget,
		Categories:    categories,
	}, logger)

	if err := persister.Start(ctx); err != nil {
		return err
	}

	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	err = store.Initialize(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("initialize budget store: %w", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(monthRollSchedule, func() {
		if err := store.EnsureCurrentMonth(ctx); err != nil {
			logger.Warn("Month rollover check failed", log.FieldError, err.Error())
		}
	}); err != nil {
		return fmt.Errorf("schedule month rollover: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	var opts apphttp.Options
	if clock, ok := gw.Gateway.(apphttp.DocumentClock); ok {
		opts.Storage = clock
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, store, logger, opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budget server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldMonth, string(store.CurrentMonth().Key()),
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		// last chance to write what the user changed
		if err := persister.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("final save: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
