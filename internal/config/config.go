// Package config loads service configuration from a YAML file and the
// environment. Environment variables override the file.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settlement sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceKafka    = "kafka"
)

// Config holds the service settings.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// TradingDir is the daemon's working directory holding the JSONL log.
	TradingDir string `yaml:"trading_dir"`
	// SettlementLog overrides the log path; empty means TradingDir's log.
	SettlementLog string `yaml:"settlement_log"`
	Source        string `yaml:"source"`

	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`

	Kafka KafkaConfig `yaml:"kafka"`

	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	WatchInterval      time.Duration `yaml:"watch_interval"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// KafkaConfig selects the topic and consumer group for the Kafka source.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
	Topic   string   `yaml:"topic"`
}

// Default returns a config that reads the log from the working directory.
func Default() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		TradingDir:         ".",
		Source:             SourceFile,
		CacheTTL:           5 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		WatchInterval:      2 * time.Second,
		RequestTimeout:     30 * time.Second,
		Kafka: KafkaConfig{
			GroupID: "settlement-analytics",
			Topic:   "kalshi.settlements",
		},
	}
}

// LoadFile reads YAML from path over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from non-empty environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("TRADING_DIR"); v != "" {
		c.TradingDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SETTLEMENT_SOURCE")); v != "" {
		c.Source = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_TOPIC")); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
