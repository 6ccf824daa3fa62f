package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if !c.Feed.SyntheticEnabled() {
		if c.Feed.EndpointURL == "" {
			return errors.New("feed.endpoint_url is required when the synthetic source is disabled")
		}
		u, err := url.Parse(c.Feed.EndpointURL)
		if err != nil {
			return fmt.Errorf("feed.endpoint_url: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss":
		case "kafka":
			if u.Host == "" || strings.Trim(u.Path, "/") == "" {
				return errors.New("feed.endpoint_url: kafka endpoints need brokers and a topic, e.g. kafka://broker:9092/ticks")
			}
			if u.Query().Has("group") {
				return errors.New("feed.endpoint_url: kafka consumer groups replay missed ticks and are not supported")
			}
		default:
			return fmt.Errorf("feed.endpoint_url must use ws, wss or kafka, got %q", u.Scheme)
		}
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	if c.Synthetic.Interval <= 0 {
		return errors.New("synthetic.interval must be > 0")
	}
	if len(c.Synthetic.Symbols) == 0 {
		return errors.New("synthetic.symbols must not be empty")
	}
	for i, sym := range c.Synthetic.Symbols {
		if sym == "" {
			return fmt.Errorf("synthetic.symbols[%d] is empty", i)
		}
	}
	if c.Synthetic.PriceFloor <= 0 {
		return errors.New("synthetic.price_floor must be > 0")
	}
	if c.Synthetic.PriceSpan < 0 {
		return errors.New("synthetic.price_span must be >= 0")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be less than base_delay (%v)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	if c.Batch.FlushInterval <= 0 {
		return errors.New("batch.flush_interval must be > 0")
	}

	if err := c.Holdings.validate(); err != nil {
		return err
	}

	switch c.Watchlist.Backend {
	case WatchlistBackendMemory:
	case WatchlistBackendRedis:
		if c.Watchlist.Redis.Addr == "" {
			return errors.New("watchlist.redis.addr is required")
		}
	default:
		return fmt.Errorf("watchlist.backend must be memory or redis, got %q", c.Watchlist.Backend)
	}
	if c.Watchlist.Key == "" {
		return errors.New("watchlist.key is required")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (h *HoldingsConfig) validate() error {
	if h.RetryDelay < 0 {
		return errors.New("holdings.retry_delay must be >= 0")
	}

	switch h.Source {
	case HoldingsSourceStatic:
		return nil
	case HoldingsSourceFile:
		if h.Path == "" {
			return errors.New("holdings.path is required for the file source")
		}
		return nil
	case HoldingsSourceHTTP:
		if h.URL == "" {
			return errors.New("holdings.url is required for the http source")
		}
		return nil
	case HoldingsSourcePostgres:
		if h.Table == "" {
			return errors.New("holdings.table is required for the postgres source")
		}
		return h.Database.validate("holdings.database")
	default:
		return fmt.Errorf("holdings.source must be static, file, http or postgres, got %q", h.Source)
	}
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
