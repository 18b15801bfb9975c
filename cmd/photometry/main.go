// Package main provides the batch photometry entry point.
// Executes: frame discovery → header ingestion → photometry → persistence
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"photometry-lab/internal/config"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
	"photometry-lab/internal/orchestrator"
	"photometry-lab/internal/photometry"
	"photometry-lab/internal/storage"
	chstore "photometry-lab/internal/storage/clickhouse"
	"photometry-lab/internal/storage/memory"
	"photometry-lab/internal/storage/migrations"
	pgstore "photometry-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "photometry.yaml", "Run configuration file")
	dir := flag.String("dir", "", "Directory of FITS frames to photometer")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of the configured databases")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[photometry] ", log.LstdFlags)

	if *dir == "" {
		logger.Fatal("--dir is required")
	}

	cfg, err := config.LoadConfiguration(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg.Storage, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	tools := iraf.NewExecToolchain(iraf.Options{})
	reporter := events.NewLogReporter(logger)

	orch := orchestrator.New(orchestrator.Options{
		ImageStore:       stores.imageStore,
		MeasurementStore: stores.measurementStore,
		LightCurveStore:  stores.lightCurveStore,
		Detector:         tools,
		Pipeline: photometry.NewPipeline(tools, photometry.PipelineOptions{
			Saturation: cfg.Photometry.Saturation,
			Margin:     cfg.Photometry.Margin,
			Reporter:   reporter,
			Logger:     logger,
		}),
		Config:  cfg,
		Verbose: *verbose,
	})

	result, err := orch.Run(ctx, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run completed:\n")
	fmt.Printf("  Frames:    %d (%d skipped)\n", result.ImagesProcessed, result.ImagesSkipped)
	fmt.Printf("  Stars:     %d\n", result.StarsMeasured)
	fmt.Printf("  Saturated: %d\n", result.Saturated)
	fmt.Printf("  Undefined: %d\n", result.Undefined)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}

// allStores holds the storage implementations a run writes to.
type allStores struct {
	imageStore       storage.ImageStore
	measurementStore storage.MeasurementStore
	lightCurveStore  storage.LightCurveStore
}

// createStores creates the stores, running migrations when databases are used.
func createStores(ctx context.Context, opts config.StorageOptions, useMemory bool) (*allStores, func(), error) {
	if useMemory || (opts.PostgresDSN == "" && opts.ClickHouseDSN == "") {
		stores := &allStores{
			imageStore:       memory.NewImageStore(),
			measurementStore: memory.NewMeasurementStore(),
			lightCurveStore:  memory.NewLightCurveStore(),
		}
		return stores, func() {}, nil
	}
	if opts.PostgresDSN == "" || opts.ClickHouseDSN == "" {
		return nil, nil, fmt.Errorf("postgres_dsn and clickhouse_dsn must both be set (or use --use-memory)")
	}

	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, opts.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		imageStore:       pgstore.NewImageStore(pool),
		measurementStore: pgstore.NewMeasurementStore(pool),
		lightCurveStore:  chstore.NewLightCurveStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
