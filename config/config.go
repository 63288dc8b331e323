package config

import (
	"os"

	postgres_wrapper "github.com/joripage/brokerage-api/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/brokerage-api/pkg/infra/redis"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	BrokerageDB *postgres_wrapper.PostgresConfig `yaml:"brokerage_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Settlement  *SettlementConfig                `yaml:"settlement"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	WorkerCount int      `yaml:"worker_count"`
	MaxRetries  int      `yaml:"max_retries"`
	DLQTopic    string   `yaml:"dlq_topic"`
}

type SettlementConfig struct {
	SystemStockLimit int64 `yaml:"system_stock_limit"`
	LockWaitSeconds  int   `yaml:"lock_wait_seconds"`
	LockTTLSeconds   int   `yaml:"lock_ttl_seconds"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
