package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budvest_data_service/config"
	"budvest_data_service/middleware"
	"budvest_data_service/models"
	"budvest_data_service/routes"
	"budvest_data_service/scheduler"
	"budvest_data_service/services/collector"
	"budvest_data_service/services/events"
	"budvest_data_service/services/history"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	setupLogging(cfg)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.Info("==============================================")
	logrus.Info("  Market Data Service - Starting...")
	logrus.Info("==============================================")

	db, err := config.InitDB(cfg)
	if err != nil {
		logrus.Fatalf("Database connection failed: %v", err)
	}
	if err := runMigrations(db); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	if err := models.SeedAdminUser(db, cfg.AdminUsername, cfg.AdminPasswordHash); err != nil {
		logrus.Warnf("Could not seed admin user: %v", err)
	}

	loc := cfg.Location()
	st := store.New(db)
	client := provider.NewClient(cfg.Provider)
	set := collector.NewSet(cfg, collector.NewSources(client), st)

	gate, err := scheduler.NewTradingWindow(cfg.Market.TradingHours, loc)
	if err != nil {
		logrus.Fatalf("Invalid trading hours: %v", err)
	}

	dbRecorder := history.NewDBRecorder(db)
	recorders := history.Multi{dbRecorder}
	var mirror *history.MongoRecorder
	if cfg.MongoURI != "" {
		mirror, err = history.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logrus.Warnf("MongoDB mirror disabled: %v", err)
			mirror = nil
		} else {
			recorders = append(recorders, mirror)
		}
	}

	hub := events.NewHub()

	jobScheduler := scheduler.NewScheduler(gate, scheduler.Options{
		Location:      loc,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Recorder:      recorders,
		Notifier:      hub,
	})
	if err := jobScheduler.Register(scheduler.DefaultJobs(cfg.Jobs, set)...); err != nil {
		logrus.Fatalf("Failed to register jobs: %v", err)
	}

	// signals stop the warm-up between jobs and drain like any other run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := jobScheduler.WarmUp(ctx, cfg.Jobs.WarmUp); err != nil {
		if ctx.Err() == nil {
			logrus.Fatalf("Warm-up failed: %v", err)
		}
		logrus.Info("Shutdown signal received during warm-up, shutting down gracefully...")
		gracefulShutdown(cfg, nil, jobScheduler, hub, mirror)
		return
	}
	if err := jobScheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	for _, j := range jobScheduler.Jobs() {
		logrus.WithFields(logrus.Fields{
			"job":     j.Name,
			"cadence": j.Cadence,
			"gated":   j.Gated,
		}).Info("Job scheduled")
	}

	server := newServer(cfg, db, st, jobScheduler, dbRecorder, hub, mirror)
	go func() {
		logrus.Infof("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server error: %v", err)
		}
	}()

	go heartbeat(ctx, jobScheduler)

	<-ctx.Done()
	logrus.Info("Shutdown signal received, shutting down gracefully...")
	gracefulShutdown(cfg, server, jobScheduler, hub, mirror)
}

func setupLogging(cfg config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func runMigrations(db *gorm.DB) error {
	if err := models.MigrateMarketModels(db); err != nil {
		return err
	}
	if err := models.MigrateJobModels(db); err != nil {
		return err
	}
	if err := models.MigrateAdminModels(db); err != nil {
		return err
	}
	logrus.Info("Database migrations completed")
	return nil
}

func newServer(cfg config.Config, db *gorm.DB, st *store.Store, jobs *scheduler.Scheduler,
	runs *history.DBRecorder, hub *events.Hub, mirror *history.MongoRecorder) *http.Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())

	deps := routes.Deps{
		DB:        db,
		Store:     st,
		Jobs:      jobs,
		Runs:      runs,
		Hub:       hub,
		JWTSecret: cfg.JWTSecret,
	}
	if mirror != nil {
		deps.Mirror = mirror
	}
	routes.SetupRoutes(router, deps)

	return &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// heartbeat logs the scheduler state once a minute
func heartbeat(ctx context.Context, jobs *scheduler.Scheduler) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			running := 0
			for _, j := range jobs.Jobs() {
				if j.State == scheduler.StateRunning {
					running++
				}
			}
			logrus.WithField("running", running).Debug("Scheduler heartbeat")
		}
	}
}

// gracefulShutdown stops accepting requests, then lets in-flight job runs
// finish within the configured timeout. server is nil before it started.
func gracefulShutdown(cfg config.Config, server *http.Server, jobs *scheduler.Scheduler,
	hub *events.Hub, mirror *history.MongoRecorder) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logrus.Warnf("Server forced to shutdown: %v", err)
		}
	}

	if err := jobs.Shutdown(ctx); err != nil {
		logrus.Warnf("Scheduler did not drain in time: %v", err)
	} else {
		logrus.Info("Scheduler stopped")
	}

	hub.Shutdown()

	if mirror != nil {
		if err := mirror.Close(); err != nil {
			logrus.Warnf("Error closing MongoDB: %v", err)
		}
	}

	logrus.Info("Server exited")
}
