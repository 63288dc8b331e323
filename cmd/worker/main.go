package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/brokerage-api/config"
	postgres_wrapper "github.com/joripage/brokerage-api/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/brokerage-api/pkg/infra/redis"
	kafkawrapper "github.com/joripage/brokerage-api/pkg/kafka_wrapper"
	"github.com/joripage/brokerage-api/pkg/settlement"
	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/joripage/brokerage-api/pkg/settlement/lock"
	"github.com/joripage/brokerage-api/pkg/settlement/notify"
	"github.com/joripage/brokerage-api/pkg/settlement/repo"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// init db
	db, err := postgres_wrapper.InitPostgres(cfg.BrokerageDB)
	if err != nil {
		zap.S().Errorf("init db fail with err: %v", err)
		panic(err)
	}

	// init redis
	redisClient, err := redis_wrapper.InitRedis(cfg.Redis)
	if err != nil {
		zap.S().Errorf("init redis fail with err: %v", err)
		panic(err)
	}

	sqlRepo := repo.NewRepo(db)
	orderCache := cache.NewOrderCache(redisClient, logger)
	stockCache := cache.NewStockCache(redisClient, logger)
	locks := lock.NewCoordinator(redisClient, logger,
		time.Duration(cfg.Settlement.LockTTLSeconds)*time.Second)

	producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	notifier := notify.NewNotifier(producer, logger)

	settler := settlement.NewSettler(sqlRepo, orderCache, stockCache, locks, notifier,
		settlement.SettlerConfig{
			SystemStockLimit: cfg.Settlement.SystemStockLimit,
			LockWait:         time.Duration(cfg.Settlement.LockWaitSeconds) * time.Second,
		}, logger)
	consumer := settlement.NewConsumer(settler, logger)

	group, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     settlement.StockActionConsumerGroup,
		Topics:      settlement.OrderTopics,
		WorkerCount: cfg.Kafka.WorkerCount,
		MaxRetries:  cfg.Kafka.MaxRetries,
		DLQTopic:    cfg.Kafka.DLQTopic,
	})
	if err != nil {
		zap.S().Errorf("init consumer group fail with err: %v", err)
		panic(err)
	}
	defer group.Close()

	go func() {
		if err := group.Run(ctx, consumer.HandleMessage); err != nil && err != context.Canceled {
			zap.S().Errorf("consumer group stopped with err: %v", err)
		}
	}()

	zap.S().Infof("settlement worker started, service=%s", cfg.ServiceName)

	<-sigs
	zap.S().Info("shutting down...")
	cancel()
	_ = producer.Close(context.Background())
}
