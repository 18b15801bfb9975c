// Package main provides the unified service that runs all components together:
// - Photometry (scheduled): new frames under the watch directory are photometered
// - Query API: images, measurements and light curves over HTTP
// - Live progress over WebSocket, Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"photometry-lab/internal/config"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
	"photometry-lab/internal/observability"
	"photometry-lab/internal/orchestrator"
	"photometry-lab/internal/photometry"
	"photometry-lab/internal/storage"
	chstore "photometry-lab/internal/storage/clickhouse"
	"photometry-lab/internal/storage/memory"
	"photometry-lab/internal/storage/migrations"
	pgstore "photometry-lab/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	cfg         config.Configuration
	dir         string
	runInterval time.Duration

	stores *allStores
	orch   *orchestrator.Orchestrator
	hub    *events.Hub
	logger *log.Logger

	// State
	mu         sync.Mutex
	started    time.Time
	lastRun    time.Time
	runRunning bool
	runs       int
}

// allStores holds the storage implementations.
type allStores struct {
	imageStore       storage.ImageStore
	measurementStore storage.MeasurementStore
	lightCurveStore  storage.LightCurveStore
}

func main() {
	configPath := flag.String("config", "photometry.yaml", "Run configuration file")
	dir := flag.String("dir", "", "Watch directory of FITS frames (omit to serve queries only)")
	runInterval := flag.Duration("run-interval", 1*time.Hour, "Photometry run interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of the configured databases")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.LoadConfiguration(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	addr := cfg.Server.Listen
	if *listen != "" {
		addr = *listen
	}
	if addr == "" {
		addr = ":8080"
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg.Storage, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	hub := events.NewHub(nil, logger)
	defer hub.Close()

	tools := iraf.NewExecToolchain(iraf.Options{})
	reporter := events.MultiReporter{events.NewLogReporter(logger), hub}

	server := &Server{
		cfg:         cfg,
		dir:         *dir,
		runInterval: *runInterval,
		stores:      stores,
		hub:         hub,
		logger:      logger,
		started:     time.Now(),
		orch: orchestrator.New(orchestrator.Options{
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
			Verbose: true,
		}),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	httpServer := &http.Server{Addr: addr, Handler: server.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if *dir != "" {
		go server.runScheduler(ctx)
	} else {
		logger.Println("No watch directory given, serving queries only")
	}

	logger.Printf("Starting HTTP server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
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

// runScheduler photometers the watch directory on a fixed interval.
// Frames already stored are skipped, so only new arrivals cost anything.
func (s *Server) runScheduler(ctx context.Context) {
	s.logger.Printf("Starting photometry scheduler (interval: %v)...", s.runInterval)

	// Run immediately on start
	s.runPhotometry(ctx)

	ticker := time.NewTicker(s.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPhotometry(ctx)
		}
	}
}

// runPhotometry executes one photometry run over the watch directory.
func (s *Server) runPhotometry(ctx context.Context) {
	s.mu.Lock()
	if s.runRunning {
		s.mu.Unlock()
		s.logger.Println("Photometry run already in progress, skipping...")
		return
	}
	s.runRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runRunning = false
		s.lastRun = time.Now()
		s.runs++
		s.mu.Unlock()
	}()

	s.logger.Println("Running photometry...")
	start := time.Now()

	result, err := s.orch.Run(ctx, s.dir)
	if err != nil {
		s.logger.Printf("Photometry run error: %v", err)
		return
	}

	observability.DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
	s.logger.Printf("Photometry completed in %v: %d frames (%d skipped), %d stars",
		time.Since(start), result.ImagesProcessed, result.ImagesSkipped, result.StarsMeasured)
}

// routes assembles the HTTP handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/images", s.handleImages)
	mux.HandleFunc("/api/measurements", s.handleMeasurements)
	mux.HandleFunc("/api/lightcurve", s.handleLightCurve)

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	WatchDir   string    `json:"watch_dir,omitempty"`
	LastRun    time.Time `json:"last_run,omitempty"`
	Runs       int       `json:"runs"`
	RunRunning bool      `json:"run_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).String(),
		WatchDir:   s.dir,
		LastRun:    s.lastRun,
		Runs:       s.runs,
		RunRunning: s.runRunning,
	})
}

// handleImages serves /api/images?object=NAME or /api/images?from=&to=.
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if object := r.URL.Query().Get("object"); object != "" {
		images, err := s.stores.imageStore.GetByObject(ctx, object)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, images)
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	images, err := s.stores.imageStore.GetByTimeRange(ctx, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, images)
}

// handleMeasurements serves /api/measurements?image_id= or ?star_id=.
func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if imageID := r.URL.Query().Get("image_id"); imageID != "" {
		ms, err := s.stores.measurementStore.GetByImageID(ctx, imageID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, ms)
		return
	}
	if starID := r.URL.Query().Get("star_id"); starID != "" {
		ms, err := s.stores.measurementStore.GetByStarID(ctx, starID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, ms)
		return
	}
	http.Error(w, "image_id or star_id is required", http.StatusBadRequest)
}

// handleLightCurve serves /api/lightcurve?star_id=[&from=&to=].
func (s *Server) handleLightCurve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	starID := r.URL.Query().Get("star_id")
	if starID == "" {
		http.Error(w, "star_id is required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("from") == "" && r.URL.Query().Get("to") == "" {
		curve, err := s.stores.lightCurveStore.GetByStarID(ctx, starID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, curve)
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	curve, err := s.stores.lightCurveStore.GetByTimeRange(ctx, starID, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, curve)
}

// timeRange parses the from/to query parameters as Unix seconds.
func timeRange(r *http.Request) (int64, int64, error) {
	from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad from parameter: %w", err)
	}
	to, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad to parameter: %w", err)
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
