// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the indexer.
type Config struct {
	// DatabaseURL selects the Postgres entity store. When empty the
	// indexer runs on the in-memory store, which is useful for replays.
	DatabaseURL string `env:"DATABASE_URL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	// APISecret enables bearer-token auth on the query API when set.
	APISecret string `env:"API_SECRET"`

	IPFSGateway     string        `env:"IPFS_GATEWAY" envDefault:"https://ipfs.io/ipfs"`
	MetadataTimeout time.Duration `env:"METADATA_TIMEOUT" envDefault:"10s"`

	// RedisAddr enables the metadata fetch cache when set.
	RedisAddr        string        `env:"REDIS_ADDR"`
	MetadataCacheTTL time.Duration `env:"METADATA_CACHE_TTL" envDefault:"24h"`

	// KafkaBrokers selects the Kafka ingestion source when set; otherwise
	// ReplayFile is consumed ("-" for stdin).
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"chain.agreement-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"pactindex"`
	ReplayFile   string   `env:"REPLAY_FILE"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
