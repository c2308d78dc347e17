package main

import (
	"context"
	"database/sql"
	"dispatch-coordination-service/internal/adapters/cache"
	"dispatch-coordination-service/internal/adapters/geocode"
	"dispatch-coordination-service/internal/adapters/ledger"
	"dispatch-coordination-service/internal/adapters/push"
	"dispatch-coordination-service/internal/adapters/repositories"
	"dispatch-coordination-service/internal/api"
	"dispatch-coordination-service/internal/config"
	"dispatch-coordination-service/internal/platform/db"
	"dispatch-coordination-service/internal/platform/logging"
	"dispatch-coordination-service/internal/platform/metrics"
	"dispatch-coordination-service/internal/ports"
	"dispatch-coordination-service/internal/services"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// main is the application composition root.
// It wires concrete adapters behind ports, starts the periodic jobs and serves HTTP.
func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if envErr != nil {
		logger.Debug().Msg("no .env file found (using environment variables)")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	store, err := initStore(ctx, conn, cfg.Database.Driver, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	clock := ports.ClockFunc(time.Now)
	pushSender := newPushSender(cfg.Push, logger)

	pingLedger, closeLedger := newPingLedger(ctx, cfg.Redis, logger)
	defer closeLedger()

	alerts := services.NewAlertService(
		store,
		services.NewAlertEngine(pingLedger, services.DefaultPingMarkerTTL),
		pushSender,
		clock,
		m,
		cfg.Alerts.SupervisorIDs,
	)
	blasts := services.NewBlastService(store, pushSender, clock, m, services.BlastServiceConfig{
		DefaultTTL:    cfg.Blast.DefaultTTL,
		PushBatchSize: cfg.Push.BatchSize,
		AlertsChanged: alerts.Reevaluate,
	})
	planner := services.NewRoutePlanner(
		store,
		newGeocoder(conn, cfg, logger),
		cfg.Geocode.RatePerSecond,
		m,
		services.RouteOptions{
			StartTime:      cfg.Route.StartTime,
			AvgSpeedMph:    &cfg.Route.AvgSpeedMph,
			MinutesPerStop: &cfg.Route.MinutesPerStop,
		},
	)

	scheduler, err := startJobs(ctx, cfg, alerts, blasts)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Loads:   services.NewLoadService(store, clock),
		Blasts:  blasts,
		Alerts:  alerts,
		Planner: planner,
		Clock:   clock,
		DB:      conn,
		Metrics: metrics.Handler(reg),
	}, logger)

	// Timeouts leave room for cold-cache geocoding on courier route plans.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("scheduler shutdown")
	}
	// Let in-flight push fan-outs finish before the store closes.
	blasts.Wait()

	return nil
}

func initStore(ctx context.Context, conn *sql.DB, driver string, logger zerolog.Logger) (*repositories.SQLStore, error) {
	if err := repositories.InitSchema(conn); err != nil {
		return nil, err
	}
	store := repositories.NewSQLStore(conn, driver)

	// Seed demo data on startup for local runs.
	if path := config.Get("SEED_PATH", ""); path != "" {
		n, err := repositories.SeedFromJSON(ctx, store, path)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("inserted", n).Str("path", path).Msg("seeded loads")
	}
	return store, nil
}

func newPushSender(cfg config.PushConfig, logger zerolog.Logger) ports.PushSender {
	if cfg.WebhookURL == "" {
		logger.Warn().Msg("PUSH_WEBHOOK_URL not set; push notifications are logged only")
		return push.LogSender{}
	}
	return push.NewWebhookSender(cfg.WebhookURL, cfg.APIKey)
}

// newPingLedger prefers Redis so auto-ping markers survive restarts and are shared
// across instances. Without Redis the markers live in process memory.
func newPingLedger(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (ports.PingLedger, func()) {
	if cfg.Addr == "" {
		return ledger.NewMemoryPingLedger(nil), func() {}
	}

	client, err := ledger.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, keeping ping markers in memory")
		return ledger.NewMemoryPingLedger(nil), func() {}
	}
	return ledger.NewRedisPingLedger(client), func() { _ = client.Close() }
}

// newGeocoder uses OpenRouteService behind the SQL address cache when a key is
// configured. Otherwise loads without coordinates are skipped by the planner.
func newGeocoder(conn *sql.DB, cfg config.Config, logger zerolog.Logger) ports.Geocoder {
	if cfg.Geocode.ORSAPIKey == "" {
		logger.Warn().Msg("ORS_API_KEY not set; addresses will not be geocoded")
		return geocode.NewStaticGeocoder(nil)
	}

	g, err := geocode.NewORSGeocoder(cfg.Geocode.ORSAPIKey, cache.NewSQLGeocodeCache(conn, cfg.Database.Driver))
	if err != nil {
		logger.Warn().Err(err).Msg("geocoder disabled")
		return geocode.NewStaticGeocoder(nil)
	}
	return g
}

// startJobs schedules the alert evaluation tick and the stale-blast sweep.
func startJobs(
	ctx context.Context,
	cfg config.Config,
	alerts *services.AlertService,
	blasts *services.BlastService,
) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	jobs := []struct {
		name  string
		every time.Duration
		run   func(context.Context) error
	}{
		{"alert-tick", cfg.Alerts.Tick, func(ctx context.Context) error {
			_, err := alerts.Tick(ctx)
			return err
		}},
		{"blast-sweep", cfg.Blast.SweepEvery, func(ctx context.Context) error {
			_, err := blasts.ExpireStale(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		_, err := scheduler.NewJob(
			gocron.DurationJob(job.every),
			gocron.NewTask(func() {
				if err := job.run(ctx); err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Str("job", job.name).Msg("scheduled job failed")
				}
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	scheduler.Start()
	return scheduler, nil
}
