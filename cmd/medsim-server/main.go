// Package main is the entry point for the medical simulation server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/engine"
	"github.com/amornj/medsim-sub000/internal/events"
	"github.com/amornj/medsim-sub000/internal/infra/cache"
	"github.com/amornj/medsim-sub000/internal/infra/storage"
	"github.com/amornj/medsim-sub000/internal/network"
	"github.com/amornj/medsim-sub000/internal/platform/config"
	"github.com/amornj/medsim-sub000/internal/platform/logger"
	"github.com/amornj/medsim-sub000/internal/platform/metrics"
	"github.com/amornj/medsim-sub000/internal/platform/optimization"
)

// eventPersisterAdapter translates session events into storage records and
// feeds the write-latency counters.
type eventPersisterAdapter struct {
	repo storage.EventRepository
}

func (a *eventPersisterAdapter) Persist(event events.SessionEvent) error {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payloadMap map[string]interface{}
	json.Unmarshal(payloadBytes, &payloadMap)

	record := storage.SessionEventRecord{
		ID:            event.ID,
		SessionID:     event.SessionID,
		Timestamp:     event.Timestamp,
		EventType:     string(event.Type),
		EquipmentType: event.EquipmentType,
		EquipmentID:   event.EquipmentID,
		Payload:       payloadMap,
	}

	start := time.Now()
	err := a.repo.Append(context.Background(), record)
	metrics.Get().RecordEventWrite(time.Since(start), err)
	return err
}

// outcomeStoreAdapter maps engine outcomes onto the outcome repository.
type outcomeStoreAdapter struct {
	repo storage.OutcomeRepository
}

func (a *outcomeStoreAdapter) SaveOutcome(ctx context.Context, out engine.Outcome) error {
	metrics.Get().RecordSessionEnd(string(out.Outcome))
	return a.repo.Save(ctx, storage.OutcomeRecord{
		SessionID:          out.SessionID,
		ScenarioID:         out.ScenarioID,
		PlayerID:           out.PlayerID,
		Outcome:            string(out.Outcome),
		Cause:              out.Cause,
		Speed:              out.Score.Speed,
		BestPractices:      out.Score.BestPractices,
		ResourceEfficiency: out.Score.ResourceEfficiency,
		OutcomeScore:       out.Score.Outcome,
		Total:              out.Total,
		Grade:              out.Grade,
		Duration:           out.Duration,
		EndedAt:            out.EndedAt,
	})
}

// progressRecorderAdapter folds outcomes into the per-player tally.
type progressRecorderAdapter struct {
	store storage.PlayerProgressStore
}

func (a *progressRecorderAdapter) RecordOutcome(ctx context.Context, playerID string, out engine.Outcome) error {
	return a.store.Update(ctx, playerID, string(out.Outcome), out.Total, out.EndedAt)
}

func openDatabase(cfg config.Config, tuning *optimization.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		return storage.NewPostgresDB(storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
			MaxConns: tuning.DBMaxOpenConns,
			MaxIdle:  tuning.DBMaxIdleConns,
		})
	default:
		return storage.InitSQLite(cfg.SQLitePath)
	}
}

func buildRepositories(cfg config.Config, db *sql.DB) (storage.EventRepository, storage.OutcomeRepository, storage.PlayerProgressStore) {
	if cfg.DBDriver == "postgres" {
		return storage.NewPostgresEventRepository(db),
			storage.NewPostgresOutcomeRepository(db),
			storage.NewPostgresProgressStore(db)
	}
	return storage.NewSQLiteEventRepository(db),
		storage.NewSQLiteOutcomeRepository(db),
		storage.NewSQLiteProgressStore(db)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	tuning := optimization.Profile(cfg.TuningProfile)
	appLogger.Info("starting medsim server",
		zap.String("addr", cfg.Addr),
		zap.String("db_driver", cfg.DBDriver),
		zap.Duration("tick_rate", cfg.TickRate),
		zap.String("tuning_profile", cfg.TuningProfile))

	db, err := openDatabase(cfg, tuning)
	if err != nil {
		appLogger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	eventRepo, outcomeRepo, progressStore := buildRepositories(cfg, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := network.NewHub(appLogger)
	go hub.Run(ctx)

	opts := []engine.ManagerOption{
		engine.WithEventPersister(&eventPersisterAdapter{repo: eventRepo}),
		engine.WithOutcomeStore(&outcomeStoreAdapter{repo: outcomeRepo}),
		engine.WithProgressRecorder(&progressRecorderAdapter{store: progressStore}),
		engine.WithSnapshotSink(hub),
		engine.WithTickRate(cfg.TickRate),
	}

	var snapshots network.SnapshotReader
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			appLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		vitalsCache := cache.NewVitalsCache(redisClient, cfg.SnapshotTTL)
		opts = append(opts, engine.WithSnapshotCache(vitalsCache))
		snapshots = vitalsCache
		appLogger.Info("snapshot cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	manager := engine.NewManager(equipment.DefaultCatalog(), appLogger, opts...)

	mux := http.NewServeMux()
	api := network.NewSessionAPI(manager, hub, snapshots, appLogger)
	api.RegisterRoutes(mux)

	debrief := network.NewDebriefHandler(eventRepo, outcomeRepo, appLogger)
	debrief.RegisterRoutes(mux)

	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		appLogger.Info("http server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	appLogger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown error", zap.Error(err))
	}

	manager.Shutdown()
	cancel()
	appLogger.Info("server stopped")
}
