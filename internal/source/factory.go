package source

import (
	"log/slog"
	"strings"

	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/connection"
)

// Config selects and configures the source variant.
type Config struct {
	UseSynthetic bool
	Synthetic    SyntheticConfig
	Client       connection.ClientConfig
	Kafka        *KafkaConfig // Set when the endpoint is a kafka:// URL
}

// FromConfig derives the source configuration from the process config.
func FromConfig(cfg *config.Config) Config {
	client := connection.DefaultClientConfig()
	client.URL = cfg.Feed.EndpointURL
	if cfg.Feed.HandshakeTimeout > 0 {
		client.HandshakeTimeout = cfg.Feed.HandshakeTimeout
	}
	if cfg.Feed.PingInterval > 0 {
		client.PingInterval = cfg.Feed.PingInterval
	}
	if cfg.Feed.PingTimeout > 0 {
		client.PingTimeout = cfg.Feed.PingTimeout
	}
	if cfg.Feed.BufferSize > 0 {
		client.BufferSize = cfg.Feed.BufferSize
	}

	out := Config{
		UseSynthetic: cfg.Feed.SyntheticEnabled(),
		Synthetic: SyntheticConfig{
			Interval:   cfg.Synthetic.Interval,
			Symbols:    cfg.Synthetic.Symbols,
			PriceFloor: cfg.Synthetic.PriceFloor,
			PriceSpan:  cfg.Synthetic.PriceSpan,
		},
		Client: client,
	}
	if strings.HasPrefix(cfg.Feed.EndpointURL, "kafka://") {
		if kc, err := ParseKafkaURL(cfg.Feed.EndpointURL); err == nil {
			if cfg.Feed.HandshakeTimeout > 0 {
				kc.DialTimeout = cfg.Feed.HandshakeTimeout
			}
			out.Kafka = &kc
		}
	}
	return out
}

// Kind names the configured variant.
func (c Config) Kind() string {
	switch {
	case c.UseSynthetic:
		return "synthetic"
	case c.Kafka != nil:
		return "kafka"
	default:
		return "network"
	}
}

// NewFactory returns a factory building a fresh source of the configured
// variant on every call.
func NewFactory(cfg Config, logger *slog.Logger) connection.SourceFactory {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", cfg.Kind())

	switch {
	case cfg.UseSynthetic:
		return connection.SourceFactoryFunc(func() connection.Source {
			return NewSynthetic(cfg.Synthetic, WithSyntheticLogger(logger))
		})
	case cfg.Kafka != nil:
		kc := *cfg.Kafka
		return connection.SourceFactoryFunc(func() connection.Source {
			return NewKafka(kc, WithKafkaLogger(logger))
		})
	}
	return connection.SourceFactoryFunc(func() connection.Source {
		return NewNetwork(cfg.Client, logger)
	})
}
