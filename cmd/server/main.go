package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/handler"
	"escrowledger/internal/infrastructure/cache"
	"escrowledger/internal/infrastructure/database"
	"escrowledger/internal/infrastructure/mq"
	"escrowledger/internal/job"
	"escrowledger/internal/logger"
	"escrowledger/internal/metrics"
	"escrowledger/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	initLogger(cfg)
	defer logger.Sync()

	idgen.Init(1)
	metrics.Init()

	db := database.InitPostgres(&cfg.Postgres)
	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	scheduler := job.NewScheduler(db, redisClient, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	router := handler.SetupRouter(db, redisClient, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown: %v", err)
	}

	logger.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level := logger.ParseLevel(cfg.Log.Level)

	var l *logger.Logger
	var err error
	if cfg.Log.File != "" {
		l, err = logger.NewWithFileRotation(level, logger.FileConfig{Filename: cfg.Log.File})
	} else {
		l, err = logger.New(level)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	logger.SetDefaultLogger(l)
}
