// Package bootstrap wires configuration into the shared components of the
// gateway and worker processes.
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/pool"
	"tezos-gateway/internal/service/mq"
	"tezos-gateway/pkg/cache"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/database"
	"tezos-gateway/pkg/logger"
)

// NodePool builds one RPC client per configured node.
func NodePool(cfg config.TezosConfig) (*pool.Pool[chain.Client], error) {
	members := make([]pool.Member[chain.Client], 0, len(cfg.Nodes))
	for _, url := range cfg.Nodes {
		members = append(members, pool.Member[chain.Client]{Name: url, Client: chain.NewRPCClient(url, cfg.RPCTimeout)})
	}
	return pool.New("node", members...)
}

func Postgres(cfg config.DBConfig) (*gorm.DB, error) {
	return database.ConnectPostgres(database.DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name))
}

func Redis(cfg config.RedisConfig) (*redis.Client, error) {
	return database.ConnectRedis(cfg.Addr, cfg.Password, cfg.DB)
}

// Broker returns the producer and consumer selected by redis.mq_type.
func Broker(cfg config.Config, rdb *redis.Client, consumerName string) (mq.Producer, mq.Consumer) {
	if cfg.Redis.MQType == "kafka" {
		logger.Info("MQ Mode: Kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers), mq.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Queues.Group)
	}
	logger.Info("MQ Mode: Redis Streams")
	return mq.NewRedisProducer(rdb), mq.NewRedisConsumer(rdb, cfg.Queues.Group, consumerName)
}

// SchemaCache is the two level entry point cache: process memory in front
// of redis shared by all instances.
func SchemaCache(cfg config.CacheConfig, rdb *redis.Client) cache.Cache {
	local := cache.NewMemoryCache(cfg.ContractTTL, 2*cfg.ContractTTL)
	return cache.NewMultiLevelCache(local, cache.NewRedisCache(rdb, "tezos-gateway:"))
}
