package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// PRICESTREAM_FEED_ENDPOINT_URL overrides feed.endpoint_url.
const EnvPrefix = "PRICESTREAM"

// Keys that can be overridden from the environment.
var envKeys = []string{
	"feed.endpoint_url",
	"feed.use_synthetic_source",
	"synthetic.interval",
	"batch.flush_interval",
	"holdings.source",
	"holdings.path",
	"holdings.url",
	"holdings.retry_delay",
	"holdings.database.host",
	"holdings.database.port",
	"holdings.database.name",
	"holdings.database.user",
	"holdings.database.password",
	"watchlist.backend",
	"watchlist.redis.addr",
	"watchlist.redis.password",
	"watchlist.redis.db",
	"http.addr",
	"log.level",
	"log.format",
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Resolve builds the startup configuration: the YAML file at path (or the
// defaults when path is empty), then a .env file if present, then PRICESTREAM_*
// environment overrides. The result is validated.
func Resolve(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any PRICESTREAM_* environment variables.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	setString("feed.endpoint_url", &cfg.Feed.EndpointURL)
	if v.IsSet("feed.use_synthetic_source") {
		b := v.GetBool("feed.use_synthetic_source")
		cfg.Feed.UseSyntheticSource = &b
	}
	if v.IsSet("synthetic.interval") {
		cfg.Synthetic.Interval = v.GetDuration("synthetic.interval")
	}
	if v.IsSet("batch.flush_interval") {
		cfg.Batch.FlushInterval = v.GetDuration("batch.flush_interval")
	}

	setString("holdings.source", &cfg.Holdings.Source)
	setString("holdings.path", &cfg.Holdings.Path)
	setString("holdings.url", &cfg.Holdings.URL)
	if v.IsSet("holdings.retry_delay") {
		cfg.Holdings.RetryDelay = v.GetDuration("holdings.retry_delay")
	}
	setString("holdings.database.host", &cfg.Holdings.Database.Host)
	setInt("holdings.database.port", &cfg.Holdings.Database.Port)
	setString("holdings.database.name", &cfg.Holdings.Database.Name)
	setString("holdings.database.user", &cfg.Holdings.Database.User)
	setString("holdings.database.password", &cfg.Holdings.Database.Password)

	setString("watchlist.backend", &cfg.Watchlist.Backend)
	setString("watchlist.redis.addr", &cfg.Watchlist.Redis.Addr)
	setString("watchlist.redis.password", &cfg.Watchlist.Redis.Password)
	setInt("watchlist.redis.db", &cfg.Watchlist.Redis.DB)

	setString("http.addr", &cfg.HTTP.Addr)
	setString("log.level", &cfg.Log.Level)
	setString("log.format", &cfg.Log.Format)

	return nil
}
