package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"caseflow/internal/broadcast"
	"caseflow/internal/caselock"
	"caseflow/internal/cases"
	caseshandler "caseflow/internal/cases/handler"
	casesmetrics "caseflow/internal/cases/metrics"
	"caseflow/internal/events"
	eventshandler "caseflow/internal/events/handler"
	eventsmetrics "caseflow/internal/events/metrics"
	"caseflow/internal/evidence"
	evidencehandler "caseflow/internal/evidence/handler"
	evidencemetrics "caseflow/internal/evidence/metrics"
	jwttoken "caseflow/internal/jwt_token"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/logger"
	platformmetrics "caseflow/internal/platform/metrics"
	"caseflow/internal/platform/postgres"
	"caseflow/internal/platform/redis"
	httptransport "caseflow/internal/transport/http"
	"caseflow/migrations"
	"caseflow/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; nothing here makes domain decisions.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}

	if db != nil {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrations.Apply(migrateCtx, db); err != nil {
			cancel()
			log.Error("schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		cancel()
	}

	// Stores: postgres when configured, memory otherwise.
	var (
		caseStore     cases.Store
		eventStore    events.Store
		evidenceStore evidence.Store
	)
	if db != nil {
		caseStore = cases.NewPostgres(db)
		eventStore = events.NewPostgres(db)
		evidenceStore = evidence.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		caseStore = cases.NewInMemoryStore()
		eventStore = events.NewInMemoryStore()
		evidenceStore = evidence.NewInMemoryStore()
		log.Warn("no CASEFLOW_POSTGRES_URL set, using in-memory stores")
	}

	// Per-case serialization: distributed via redis when available.
	var locker caselock.Locker
	if redisClient != nil {
		locker = caselock.NewRedisLocker(redisClient.Client, cfg.LockTTL)
		log.Info("using redis case locker")
	} else {
		locker = caselock.NewMemoryLocker()
	}

	// Outbound notifications: queue, dispatcher, and whatever sinks this
	// deployment has configured.
	publisher := broadcast.NewPublisher(cfg.BroadcastBuffer, log)
	hub := broadcast.NewHub(log)
	sinks := []broadcast.Notifier{broadcast.NewSlogSink(log), hub}
	kafkaSink, err := broadcast.NewKafkaSink(cfg.KafkaSeeds, cfg.KafkaTopic)
	if err != nil {
		log.Error("kafka connection failed", "error", err.Error())
		os.Exit(1)
	}
	if kafkaSink != nil {
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}
	dispatcher := broadcast.NewDispatcher(publisher.Queue(), log, sinks...)

	runner := tx.NewRunner(db)
	eventLog := events.NewLog(eventStore, eventsmetrics.New())
	caseService := cases.NewService(
		caseStore, eventLog, locker, runner, publisher,
		cases.DefaultPolicy(), casesmetrics.New(), log,
	)
	ledger := evidence.NewLedger(
		evidenceStore, eventLog, locker, runner, publisher,
		caseService, evidencemetrics.New(), log,
	)
	sweeper := evidence.NewSweeper(ledger, cfg.SweepSchedule, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(
		log,
		hub,
		platformmetrics.NewHTTP(),
		checks,
		caseshandler.New(caseService, log, jwtValidator),
		evidencehandler.New(ledger, log, jwtValidator),
		eventshandler.New(eventLog, log, jwtValidator),
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		log.Info("starting caseflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := sweeper.Start(); err != nil {
		log.Error("chain sweep schedule invalid", "error", err.Error())
		os.Exit(1)
	}
	defer sweeper.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("caseflow stopped")
}
