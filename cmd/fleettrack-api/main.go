// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fleettrack/internal/cache"
	"fleettrack/internal/config"
	"fleettrack/internal/events"
	httptransport "fleettrack/internal/http"
	"fleettrack/internal/infra"
	"fleettrack/internal/metrics"
	"fleettrack/internal/modules/aggregate"
	"fleettrack/internal/modules/geofence"
	"fleettrack/internal/modules/ingest"
	"fleettrack/internal/modules/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var settingsSource settings.Source
	var geofenceSource *geofence.PostgresSource
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		defer dbPool.Close()
		settingsSource = settings.NewPostgresSource(dbPool)
		geofenceSource = geofence.NewPostgresSource(dbPool)
	}

	defaults := settings.Defaults{
		EpsilonM:          cfg.Settings.EpsilonM,
		CandidateRadiusKm: cfg.Settings.CandidateRadiusKm,
		DwellSeconds:      cfg.Settings.DwellSeconds,
		DailyEventCap:     cfg.Settings.DailyEventCap,
	}
	settingsSvc := settings.NewService(defaults, cfg.Settings.TTL, settingsSource, m)

	var meter settings.Meter
	memMeter := settings.NewMemoryMeter()
	meter = memMeter
	recorder := events.NewRecorder(512)
	publishers := events.MultiPublisher{recorder}
	if cfg.Redis.Addr != "" {
		redisClient := infra.NewRedis(cfg.Redis.Addr)
		defer redisClient.Close()
		meter = settings.NewRedisMeter(redisClient)
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.Redis.EventChannel))
	}

	geofenceStore := geofence.NewStore(cfg.Index.CellSizeKm)
	if cfg.Geofence.SeedPath != "" {
		seeded, err := geofence.LoadSeedFile(cfg.Geofence.SeedPath)
		if err != nil {
			log.Fatalf("geofence seed: %v", err)
		}
		for orgID, fences := range seeded {
			if err := geofenceStore.ReplaceOrg(orgID, fences); err != nil {
				log.Fatalf("geofence seed org %s: %v", orgID, err)
			}
		}
	}
	if geofenceSource != nil {
		loaded, err := geofenceSource.LoadAll(ctx)
		if err != nil {
			log.Fatalf("geofence load: %v", err)
		}
		for orgID, fences := range loaded {
			if err := geofenceStore.ReplaceOrg(orgID, fences); err != nil {
				log.Fatalf("geofence load org %s: %v", orgID, err)
			}
		}
	}

	evaluator := geofence.NewEvaluator(geofenceStore, settingsSvc, meter, publishers, m, cfg.Index.MaxCandidates)

	var snapshotter *geofence.Snapshotter
	if cfg.Snapshot.Path != "" {
		snapshotter = geofence.NewSnapshotter(evaluator, cfg.Snapshot.Path, cfg.Snapshot.MaxBytes, cfg.Snapshot.MinSpacing, m)
		if err := snapshotter.Load(); err != nil {
			// Best effort: a bad snapshot never blocks startup.
			log.Printf("snapshot load: %v (starting with empty state)", err)
		}
	}

	aggSvc := aggregate.NewService(cfg.Aggregate.DrivingThresholdMPS, m)
	sequencer := ingest.NewSequencer()
	filter := ingest.NewFilter(ingest.FilterConfig{
		JitterMeters:  cfg.Filter.JitterMeters,
		JitterSeconds: cfg.Filter.JitterSeconds,
		MaxSpeedMPS:   cfg.Filter.MaxSpeedMPS,
		EMAAlpha:      cfg.Filter.EMAAlpha,
	})
	ingestSvc := ingest.NewService(sequencer, filter, aggSvc, evaluator, m, cfg.Ingest.DefaultOrg)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Ingest:         ingestSvc,
		Geofences:      geofenceStore,
		Evaluator:      evaluator,
		Settings:       settingsSvc,
		Aggregates:     aggSvc,
		Recent:         recorder,
		Meter:          meter,
		Metrics:        m,
		HMACSecret:     cfg.Ingest.HMACSecret,
		IdempotencyTTL: cfg.Ingest.IdempotencyTTL,
		BatchTimeout:   cfg.Ingest.BatchTimeout,
		DefaultOrg:     cfg.Ingest.DefaultOrg,
	})

	sweeper := cache.NewSweeper(m)
	sweeper.Register(sequencer.Cache(), cfg.Sweep.TTL, cfg.Sweep.MaxEntries)
	sweeper.Register(filter.Cache(), cfg.Sweep.TTL, cfg.Sweep.MaxEntries)
	sweeper.Register(evaluator.States(), cfg.Sweep.TTL, cfg.Sweep.MaxEntries)
	sweeper.Register(evaluator.EventCache(), time.Hour, cfg.Sweep.MaxEntries)
	sweeper.Register(aggSvc.Cache(), 48*time.Hour, cfg.Sweep.MaxEntries)
	sweeper.Register(settingsSvc.Cache(), cfg.Sweep.TTL, cfg.Sweep.MaxEntries)
	sweeper.Register(memMeter.Cache(), 48*time.Hour, cfg.Sweep.MaxEntries)
	sweeper.Register(handler.IdempotencyCache(), cfg.Ingest.IdempotencyTTL, cfg.Sweep.MaxEntries)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx, cfg.Sweep.Interval)
		return nil
	})
	if snapshotter != nil {
		g.Go(func() error {
			snapshotter.Run(gctx, cfg.Snapshot.Interval)
			return nil
		})
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Printf("fleettrack listening on %s", cfg.HTTP.Addr)
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
