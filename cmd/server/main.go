package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/DukeRupert/tsfwatch/internal"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/export"
	"github.com/DukeRupert/tsfwatch/internal/ingest"
	"github.com/DukeRupert/tsfwatch/internal/mapserver"
	"github.com/DukeRupert/tsfwatch/internal/osm"
	"github.com/DukeRupert/tsfwatch/internal/refresh"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
	"github.com/DukeRupert/tsfwatch/internal/scheduler"
	"github.com/DukeRupert/tsfwatch/internal/service"
	"github.com/DukeRupert/tsfwatch/internal/storage"
	"github.com/DukeRupert/tsfwatch/internal/timeseries"
	"github.com/DukeRupert/tsfwatch/internal/weather"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	if cfg.ArcGISAPIKey == "" {
		logger.Warn("ARCGIS_API_KEY not set, basemap requests will be anonymous")
	}

	// ==========================================================================
	// Persistence
	// ==========================================================================

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var (
		accounts service.AccountStore = service.NewMemoryAccountStore()
		runLog   export.RunLog        = export.NewMemoryRunLog()
	)
	if db != nil {
		accounts = service.NewPostgresAccountStore(db)
		runLog = export.NewPostgresRunLog(db)
	}

	store, err := storage.New(cfg.StorageProvider,
		storage.LocalConfig{BasePath: cfg.LocalStoragePath, BaseURL: cfg.LocalStorageURL},
		storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3Bucket,
			PublicURL:       cfg.S3PublicURL,
			Region:          cfg.S3Region,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// ==========================================================================
	// Events
	// ==========================================================================

	bus := events.NewBus(logger)
	defer bus.Close()
	hub := events.NewHub(bus, cfg.AllowedOrigin, logger)

	if len(cfg.KafkaBrokers) > 0 {
		ch, cancel := bus.Subscribe(events.DefaultBufferSize * 4)
		defer cancel()
		sink := events.NewKafkaSink(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), logger)
		go sink.Run(ctx, ch)
		logger.Info("kafka event sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// ==========================================================================
	// Core services
	// ==========================================================================

	reg := registry.New(time.Now(), logger.With("component", "registry"))
	engine := risk.NewEngine()

	sessions := service.NewSessionManager(accounts, logger, service.WithPublisher(bus))
	if cfg.SeedAccounts {
		created, err := sessions.SeedDefaultAccounts(ctx)
		if err != nil {
			return fmt.Errorf("seeding accounts failed: %w", err)
		}
		logger.Info("default accounts ready", "created", created)
	}

	dashboardOpts := []refresh.DashboardOption{refresh.WithPublisher(bus)}
	if cfg.InfluxURL != "" {
		influx, err := timeseries.New(timeseries.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}, logger)
		if err != nil {
			return fmt.Errorf("influx initialization failed: %w", err)
		}
		defer influx.Close()
		dashboardOpts = append(dashboardOpts, refresh.WithRecorder(influx))
		logger.Info("analysis history enabled", "bucket", cfg.InfluxBucket)
	}
	dashboard := refresh.NewDashboard(reg, engine, logger, dashboardOpts...)

	exporter := export.NewExporter(dashboard, store, logger,
		export.WithPublisher(bus),
		export.WithRunLog(runLog),
	)

	// ==========================================================================
	// Collaborators
	// ==========================================================================

	mapClient, err := mapserver.NewClient(mapserver.Mode(cfg.MapServerMode), mapserver.HTTPConfig{
		BaseURL:           cfg.MapServerURL,
		Timeout:           cfg.MapServerTimeout,
		RequestsPerSecond: cfg.MapServerRPS,
	}, logger)
	if err != nil {
		return fmt.Errorf("map server client initialization failed: %w", err)
	}

	weatherClient := weather.New(weather.Config{
		APIKey:            cfg.OpenWeatherAPIKey,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
	}, logger)
	overpass := osm.NewClient(cfg.OverpassURL, nil, logger)

	// ==========================================================================
	// Background work
	// ==========================================================================

	dashboardCfg := refresh.DashboardConfig()
	dashboardCfg.Interval = cfg.DashboardRefreshInterval
	dashboardLoop, err := refresh.New(dashboardCfg, dashboard.Refresh, logger)
	if err != nil {
		return err
	}

	mapRefresher := refresh.NewMapRefresher(mapClient, reg, engine, dashboard, bus, logger)
	mapCfg := refresh.MapConfig()
	mapCfg.Interval = cfg.MapRefreshInterval
	mapLoop, err := refresh.New(mapCfg, mapRefresher.Refresh, logger)
	if err != nil {
		return err
	}

	for _, loop := range []*refresh.Coordinator{dashboardLoop, mapLoop} {
		if err := loop.Start(ctx); err != nil {
			return err
		}
		defer loop.Stop()
	}

	if cfg.MQTTBroker != "" {
		sub, err := ingest.NewSubscriber(ingest.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, ingest.NewHandler(reg, bus, logger), logger)
		if err != nil {
			return err
		}
		// An unreachable broker is retried in the background; the topic is
		// subscribed on every connect.
		if err := sub.Start(ctx); err != nil {
			logger.Warn("mqtt ingest not started", "error", err)
		}
		defer sub.Stop()
	}

	sched := scheduler.New(exporter, logger)
	if cfg.ExportSchedule != "" {
		if err := sched.ScheduleExport(cfg.ExportSchedule); err != nil {
			return err
		}
	}
	if cfg.ReportSchedule != "" {
		if err := sched.ScheduleReport(cfg.ReportSchedule); err != nil {
			return err
		}
	}
	if cfg.ExportRetention > 0 {
		if err := sched.SchedulePrune(cfg.PruneSchedule, cfg.ExportRetention); err != nil {
			return err
		}
	}
	sched.Start()

	// ==========================================================================
	// HTTP
	// ==========================================================================

	app := newRouter(routerDeps{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		sessions:  sessions,
		registry:  reg,
		engine:    engine,
		dashboard: dashboard,
		exporter:  exporter,
		scheduler: sched,
		weather:   weatherClient,
		features:  overpass,
		mapServer: mapClient,
		mapLoop:   mapLoop,
		hub:       hub,
	})
	go app.limiter.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	sched.Stop(shutdownCtx)

	logger.Info("Graceful shutdown complete")
	return nil
}

// openDatabase connects and migrates when DATABASE_URL is set. It returns a
// nil handle otherwise.
func openDatabase(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.DatabaseUrl == "" {
		logger.Warn("DATABASE_URL not set, accounts and export runs are kept in memory")
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")
	return db, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
