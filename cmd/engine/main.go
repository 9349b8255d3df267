package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	app "github.com/purplecity/PredictionMarket/internal/app/engine"
	"github.com/purplecity/PredictionMarket/internal/usecase/eventmanager"
	"github.com/purplecity/PredictionMarket/internal/usecase/matching"
	orderreader "github.com/purplecity/PredictionMarket/internal/usecase/order-reader"
	"github.com/purplecity/PredictionMarket/internal/usecase/publisher"
	"github.com/purplecity/PredictionMarket/internal/usecase/snapshot"
	"github.com/purplecity/PredictionMarket/pkg/config"
	"github.com/purplecity/PredictionMarket/pkg/logger"
	"github.com/purplecity/PredictionMarket/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	cfg = &config.Config{}
	if err := config.Load(cfg); err != nil {
		panic(err)
	}

	l, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	log = l
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	rclient := redis.NewClient(log, &cfg.Redis)
	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_redis",
		})
		os.Exit(1)
	}

	keeper := snapshot.NewKeeper()
	pub := publisher.NewPublisher(rclient, cfg.PublisherWorkers, log,
		publisher.WithStoreObserver(keeper.Apply),
		publisher.WithOrderCursorObserver(keeper.CompleteOrder),
	)
	manager := eventmanager.NewManager(eventmanager.Config{
		Engine: matching.Config{
			MaxDepthReported: cfg.MaxDepthReported,
			CommandCapacity:  cfg.CommandChannelCapacity,
			CancelBatchSize:  cfg.CancelBatchSize,
		},
		ExpiryCheckInterval: cfg.ExpiryCheckInterval,
		ExpiryDelay:         cfg.ExpiryDelay,
	}, pub, log)
	fileStore := snapshot.NewFileStore(cfg.SnapshotPath, log)
	orderConsumer := orderreader.NewConsumer(cfg.Kafka, cfg.Kafka.OrderTopic, cfg.InputBatchSize, log)
	eventConsumer := orderreader.NewConsumer(cfg.Kafka, cfg.Kafka.EventTopic, cfg.InputBatchSize, log)

	engine := app.NewEngine(
		manager,
		pub,
		keeper,
		fileStore,
		orderConsumer,
		eventConsumer,
		log,
		cfg,
	)

	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_engine",
		})
		os.Exit(1)
	}

	log.Info("Matching engine started successfully", logger.Field{
		Key:   "snapshot_path",
		Value: cfg.SnapshotPath,
	})

	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout())
	defer shutdownCancel()

	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_engine",
		})
	}

	if err := rclient.Disconnect(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "disconnect_redis",
		})
	}

	log.Info("Matching engine shutdown complete")
}
