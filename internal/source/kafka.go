package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rickgao/pricestream/internal/connection"
)

// KafkaConfig configures a Kafka-backed tick source.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	DialTimeout time.Duration // Broker probe timeout before Open
	MaxWait     time.Duration // Longest a fetch waits for new records
}

// ErrKafkaGroup is returned for kafka urls naming a consumer group. A group
// resumes from committed offsets, which would replay ticks missed while
// disconnected.
var ErrKafkaGroup = errors.New("kafka consumer groups are not supported")

// ParseKafkaURL parses kafka://host:port[,host:port...]/topic.
func ParseKafkaURL(raw string) (KafkaConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return KafkaConfig{}, err
	}
	if u.Scheme != "kafka" {
		return KafkaConfig{}, fmt.Errorf("not a kafka url: %q", raw)
	}

	if u.Query().Has("group") {
		return KafkaConfig{}, fmt.Errorf("kafka url %q: %w", raw, ErrKafkaGroup)
	}

	cfg := KafkaConfig{
		Topic:       strings.Trim(u.Path, "/"),
		DialTimeout: 10 * time.Second,
		MaxWait:     200 * time.Millisecond,
	}
	for _, b := range strings.Split(u.Host, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}
	if len(cfg.Brokers) == 0 {
		return KafkaConfig{}, fmt.Errorf("kafka url %q has no brokers", raw)
	}
	if cfg.Topic == "" {
		return KafkaConfig{}, fmt.Errorf("kafka url %q has no topic", raw)
	}
	return cfg, nil
}

// KafkaReader is the subset of *kafka.Reader used by the source.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaOption configures a Kafka source.
type KafkaOption func(*Kafka)

// WithKafkaReader replaces the reader constructor, for tests.
func WithKafkaReader(fn func(KafkaConfig) KafkaReader) KafkaOption {
	return func(k *Kafka) { k.newReader = fn }
}

// WithKafkaProbe replaces the broker reachability check run before Open.
func WithKafkaProbe(fn func(ctx context.Context, cfg KafkaConfig) error) KafkaOption {
	return func(k *Kafka) { k.probe = fn }
}

// WithKafkaLogger sets the logger.
func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) { k.logger = logger }
}

// Kafka consumes JSON ticks from a Kafka topic. It reads from the tail of
// partition 0, so ticks published while disconnected are never replayed.
type Kafka struct {
	cfg       KafkaConfig
	logger    *slog.Logger
	newReader func(KafkaConfig) KafkaReader
	probe     func(ctx context.Context, cfg KafkaConfig) error

	mu     sync.Mutex
	state  connection.SourceState
	reader KafkaReader
	cancel context.CancelFunc

	received  atomic.Int64
	malformed atomic.Int64
}

// NewKafka creates a Kafka source for cfg.
func NewKafka(cfg KafkaConfig, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		cfg:       cfg,
		newReader: newKafkaReader,
		probe:     probeBrokers,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	k.logger = k.logger.With("topic", cfg.Topic)
	return k
}

func newKafkaReader(cfg KafkaConfig) KafkaReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.LastOffset,
	})
}

// probeBrokers succeeds once any broker accepts a connection.
func probeBrokers(ctx context.Context, cfg KafkaConfig) error {
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	var errs []error
	for _, broker := range cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, fmt.Errorf("%s: %w", broker, err))
	}
	return errors.Join(errs...)
}

// Start probes the brokers and starts consuming in the background.
func (k *Kafka) Start(ctx context.Context, emit connection.Emitter) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state != connection.SourceIdle {
		return
	}
	k.state = connection.SourceOpening

	ctx, k.cancel = context.WithCancel(ctx)
	go k.run(ctx, emit)
}

// Close stops consuming. It never emits.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.state == connection.SourceClosed {
		k.mu.Unlock()
		return nil
	}
	k.state = connection.SourceClosed
	reader := k.reader
	if k.cancel != nil {
		k.cancel()
	}
	k.mu.Unlock()

	if reader != nil {
		return reader.Close()
	}
	return nil
}

// State returns the current lifecycle state.
func (k *Kafka) State() connection.SourceState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// Stats returns current statistics.
func (k *Kafka) Stats() NetworkStats {
	return NetworkStats{
		State:     k.State(),
		Received:  k.received.Load(),
		Malformed: k.malformed.Load(),
	}
}

func (k *Kafka) run(ctx context.Context, emit connection.Emitter) {
	if err := k.probe(ctx, k.cfg); err != nil {
		if k.closedByOwner(ctx) {
			return
		}
		k.fail(emit, fmt.Errorf("probe brokers: %w", err))
		return
	}

	reader := k.newReader(k.cfg)
	k.mu.Lock()
	if k.state != connection.SourceOpening {
		k.mu.Unlock()
		reader.Close()
		return
	}
	k.state = connection.SourceOpen
	k.reader = reader
	k.mu.Unlock()

	k.logger.Info("feed connected", "brokers", k.cfg.Brokers)
	emit.Open()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if k.closedByOwner(ctx) {
				return
			}
			k.fail(emit, err)
			return
		}

		k.received.Add(1)
		t, err := ParseTick(msg.Value, time.Now())
		if err != nil {
			k.malformed.Add(1)
			k.logger.Debug("dropping message", "offset", msg.Offset, "error", err)
			continue
		}
		emit.Tick(t)
	}
}

func (k *Kafka) fail(emit connection.Emitter, err error) {
	k.mu.Lock()
	k.state = connection.SourceClosed
	reader := k.reader
	k.mu.Unlock()

	if reader != nil {
		reader.Close()
	}

	k.logger.Warn("feed failed", "error", err)
	emit.Error(err)
	emit.Closed()
}

func (k *Kafka) closedByOwner(ctx context.Context) bool {
	return ctx.Err() != nil || k.State() == connection.SourceClosed
}
