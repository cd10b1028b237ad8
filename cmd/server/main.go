package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customer-segments/config"
	"customer-segments/internal/api"
	"customer-segments/internal/broker"
	"customer-segments/internal/dataset"
	"customer-segments/internal/redisclient"
	"customer-segments/internal/service"
	"customer-segments/internal/store"
	"customer-segments/internal/util"
	"customer-segments/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting customer segmentation service")

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	if len(cfg.Redis.Invalid) > 0 {
		logger.Fatal("Invalid redis configuration", zap.Strings("settings", cfg.Redis.Invalid))
	}
	opts, err := service.OptionsFromConfig(cfg.Analytics, cfg.Redis.TTL)
	if err != nil {
		logger.Fatal("Invalid analytics configuration", zap.Error(err))
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL, cfg.Database.TransactionsTable)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.Topic))

	eventPublisher := broker.NewEventPublisher(producer)

	var source service.TransactionSource = db
	if cfg.Analytics.Source == "csv" {
		source = dataset.NewFileSource(cfg.Analytics.InputFile, dataset.FieldMapping(cfg.Columns))
		logger.Info("Reading transactions from file", zap.String("path", cfg.Analytics.InputFile))
	}

	segmentationService := service.NewSegmentationService(source, db, redisClient, eventPublisher, opts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	segmentationWorker := worker.NewSegmentationWorker(consumer, segmentationService)
	go func() {
		if err := segmentationWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Segmentation worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(segmentationService, eventPublisher, map[string]api.Pinger{
		"database": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := segmentationWorker.Stop(); err != nil {
		logger.Error("Failed to stop worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
