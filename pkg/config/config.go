package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig       `mapstructure:"app"`
	DB       DBConfig        `mapstructure:"db"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Kafka    KafkaConfig     `mapstructure:"kafka"`
	Tezos    TezosConfig     `mapstructure:"tezos"`
	Indexers []IndexerConfig `mapstructure:"indexers"`
	Signers  []SignerConfig  `mapstructure:"signers"`
	Queues   QueueConfig     `mapstructure:"queues"`
	Monitor  MonitorConfig   `mapstructure:"monitor"`
	Cache    CacheConfig     `mapstructure:"cache"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type TezosConfig struct {
	Nodes                 []string      `mapstructure:"nodes"`
	ConfirmationDepth     int64         `mapstructure:"confirmation_depth"`
	MaxOperationsPerBatch int           `mapstructure:"max_operations_per_batch"`
	RetryAttempts         int           `mapstructure:"retry_attempts"`
	RPCTimeout            time.Duration `mapstructure:"rpc_timeout"`
}

type IndexerConfig struct {
	Name  string  `mapstructure:"name"`
	Kind  string  `mapstructure:"kind"` // "tzkt" or "tzstats"
	URL   string  `mapstructure:"url"`
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SignerConfig describes one secure key. Either Mnemonic or KeystorePath
// (with Password, usually passed through the environment) must be set.
type SignerConfig struct {
	Name         string `mapstructure:"name"`
	Kind         string `mapstructure:"kind"` // "ed25519" or "secp256k1"
	Mnemonic     string `mapstructure:"mnemonic"`
	Passphrase   string `mapstructure:"passphrase"`
	KeystorePath string `mapstructure:"keystore_path"`
	Password     string `mapstructure:"password"`
}

type QueueConfig struct {
	Send         string `mapstructure:"send"`
	Inject       string `mapstructure:"inject"`
	Confirmation string `mapstructure:"confirmation"`
	Group        string `mapstructure:"group"`
}

type MonitorConfig struct {
	Schedule string        `mapstructure:"schedule"`
	ClaimTTL time.Duration `mapstructure:"claim_ttl"`
}

type CacheConfig struct {
	ContractTTL time.Duration `mapstructure:"contract_ttl"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "3333")
	viper.SetDefault("app.grpc_port", "50051")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "tezos_gateway")
	viper.SetDefault("db.password", "tezos_gateway")
	viper.SetDefault("db.name", "tezos_gateway")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("tezos.nodes", []string{"https://ghostnet.tezos.marigold.dev"})
	viper.SetDefault("tezos.confirmation_depth", 2)
	viper.SetDefault("tezos.max_operations_per_batch", 5)
	viper.SetDefault("tezos.retry_attempts", 3)
	viper.SetDefault("tezos.rpc_timeout", 30*time.Second)

	viper.SetDefault("indexers", []map[string]any{
		{"name": "tzkt", "kind": "tzkt", "url": "https://api.ghostnet.tzkt.io", "rps": 10, "burst": 5},
		{"name": "tzstats", "kind": "tzstats", "url": "https://api.ghost.tzstats.com", "rps": 5, "burst": 2},
	})

	viper.SetDefault("queues.send", "tezos_gateway_send_transactions")
	viper.SetDefault("queues.inject", "tezos_gateway_inject_transaction")
	viper.SetDefault("queues.confirmation", "tezos_gateway_transaction_confirmed")
	viper.SetDefault("queues.group", "tezos-gateway-workers")

	viper.SetDefault("monitor.schedule", "@every 30s")
	viper.SetDefault("monitor.claim_ttl", time.Minute)

	viper.SetDefault("cache.contract_ttl", 10*time.Minute)
}
