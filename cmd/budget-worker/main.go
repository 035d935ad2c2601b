package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig((*config.Config).Validate, (*config.Config).ValidateWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, log.ComponentWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Export worker failed", err)
	}
	logger.Info("Export worker stopped")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting budget-worker", log.FieldBackend, cfg.DataBackend, "spreadsheet_id", cfg.GoogleSpreadsheetID)

	categories, err := cli.LoadCategories(cfg, logger)
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

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(gw.Gateway, sheetsClient, categories)

	// catch up on changes made while the worker was down
	if err := exporter.Export(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err.Error(), log.FieldOperation, log.OpExport)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExportSchedule, func() {
		if err := exporter.Export(ctx); err != nil {
			logger.Error("Scheduled export failed", log.FieldError, err.Error(), log.FieldOperation, log.OpExport)
		}
	}); err != nil {
		return fmt.Errorf("schedule export: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	logger.Info("Scheduled periodic export", "schedule", cfg.ExportSchedule)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeBudgetChanged(gctx, exporter.HandleBudgetChanged)
	})
	return g.Wait()
}
