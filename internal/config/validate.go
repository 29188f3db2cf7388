package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that the selected source is fully configured.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("port must be set")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	switch c.Source {
	case SourceFile:
		if c.TradingDir == "" && c.SettlementLog == "" {
			return fmt.Errorf("trading_dir or settlement_log must be set for source %q", c.Source)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url must be set for source %q", c.Source)
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must be set for source %q", c.Source)
		}
		if c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
			return fmt.Errorf("kafka.topic and kafka.group_id must be set for source %q", c.Source)
		}
	default:
		return fmt.Errorf("source must be 'file', 'postgres' or 'kafka', got %q", c.Source)
	}

	if c.RedisURL != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be > 0 when redis_url is set, got %v", c.CacheTTL)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be > 0, got %v", c.WatchInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0, got %v", c.RequestTimeout)
	}
	return nil
}

// SlogLevel maps log_level onto a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return level, nil
}
