package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEndpointURL        = "wss://mock.pricestream.local/ticks"
	DefaultUseSyntheticSource = true
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultFeedBufferSize     = 1024
	DefaultSyntheticInterval  = 500 * time.Millisecond
	DefaultPriceFloor         = 100.0
	DefaultPriceSpan          = 900.0
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 32 * time.Second
	DefaultFlushInterval      = 200 * time.Millisecond
	DefaultBatchCapacity      = 256
	DefaultHoldingsSource     = HoldingsSourceStatic
	DefaultHoldingsTimeout    = 10 * time.Second
	DefaultHoldingsRetryDelay = 3 * time.Second
	DefaultHoldingsTable      = "holdings"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultWatchlistBackend   = WatchlistBackendMemory
	DefaultWatchlistKey       = "pricestream:watchlist"
	DefaultRedisAddr          = "localhost:6379"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Holdings sources.
const (
	HoldingsSourceStatic   = "static"
	HoldingsSourceFile     = "file"
	HoldingsSourceHTTP     = "http"
	HoldingsSourcePostgres = "postgres"
)

// Watchlist backends.
const (
	WatchlistBackendMemory = "memory"
	WatchlistBackendRedis  = "redis"
)

// DefaultSymbols is the synthetic source's symbol set.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Feed defaults
	if c.Feed.EndpointURL == "" {
		c.Feed.EndpointURL = DefaultEndpointURL
	}
	if c.Feed.UseSyntheticSource == nil {
		v := DefaultUseSyntheticSource
		c.Feed.UseSyntheticSource = &v
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Synthetic source defaults
	if c.Synthetic.Interval == 0 {
		c.Synthetic.Interval = DefaultSyntheticInterval
	}
	if len(c.Synthetic.Symbols) == 0 {
		c.Synthetic.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Synthetic.PriceFloor == 0 {
		c.Synthetic.PriceFloor = DefaultPriceFloor
	}
	if c.Synthetic.PriceSpan == 0 {
		c.Synthetic.PriceSpan = DefaultPriceSpan
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}

	// Batch defaults
	if c.Batch.FlushInterval == 0 {
		c.Batch.FlushInterval = DefaultFlushInterval
	}
	if c.Batch.InitialCapacity == 0 {
		c.Batch.InitialCapacity = DefaultBatchCapacity
	}

	// Holdings defaults
	if c.Holdings.Source == "" {
		c.Holdings.Source = DefaultHoldingsSource
	}
	if c.Holdings.Timeout == 0 {
		c.Holdings.Timeout = DefaultHoldingsTimeout
	}
	if c.Holdings.RetryDelay == 0 {
		c.Holdings.RetryDelay = DefaultHoldingsRetryDelay
	}
	if c.Holdings.Table == "" {
		c.Holdings.Table = DefaultHoldingsTable
	}
	applyDBDefaults(&c.Holdings.Database)

	// Watchlist defaults
	if c.Watchlist.Backend == "" {
		c.Watchlist.Backend = DefaultWatchlistBackend
	}
	if c.Watchlist.Key == "" {
		c.Watchlist.Key = DefaultWatchlistKey
	}
	if c.Watchlist.Redis.Addr == "" {
		c.Watchlist.Redis.Addr = DefaultRedisAddr
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
