package config

import "time"

// Config is the top-level configuration for the pricestream binary.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Batch     BatchConfig     `yaml:"batch"`
	Holdings  HoldingsConfig  `yaml:"holdings"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// FeedConfig selects and configures the upstream tick source.
type FeedConfig struct {
	EndpointURL        string        `yaml:"endpoint_url"`
	UseSyntheticSource *bool         `yaml:"use_synthetic_source"` // nil = default (true)
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// SyntheticEnabled reports whether the synthetic source should be used.
func (f FeedConfig) SyntheticEnabled() bool {
	if f.UseSyntheticSource == nil {
		return DefaultUseSyntheticSource
	}
	return *f.UseSyntheticSource
}

// SyntheticConfig configures the synthetic tick generator.
type SyntheticConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Symbols    []string      `yaml:"symbols"`
	PriceFloor float64       `yaml:"price_floor"`
	PriceSpan  float64       `yaml:"price_span"`
}

// ReconnectConfig configures the supervisor's retry backoff.
type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// BatchConfig configures the batching buffer.
type BatchConfig struct {
	FlushInterval   time.Duration `yaml:"flush_interval"`
	InitialCapacity int           `yaml:"initial_capacity"`
}

// HoldingsConfig selects where holdings are loaded from.
type HoldingsConfig struct {
	Source     string        `yaml:"source"` // "static", "file", "http" or "postgres"
	Path       string        `yaml:"path"`   // file source
	URL        string        `yaml:"url"`    // http source
	Timeout    time.Duration `yaml:"timeout"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Table      string        `yaml:"table"` // postgres source
	Database   DBConfig      `yaml:"database"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WatchlistConfig selects the favorites backend.
type WatchlistConfig struct {
	Backend string      `yaml:"backend"` // "memory" or "redis"
	Key     string      `yaml:"key"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HTTPConfig configures the health and debug endpoints.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error"
	Format string `yaml:"format"` // "text" or "json"
}
