package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// publishKafka writes one random-walk tick per interval until ctx ends.
// Messages are keyed by symbol so each symbol stays on one partition.
func publishKafka(ctx context.Context, w messageWriter, cfg feedConfig, r *rand.Rand, logger *slog.Logger) error {
	defer w.Close()

	walk := newWalker(cfg.Symbols, r)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var sent int
	for {
		select {
		case <-ctx.Done():
			logger.Info("kafka publisher stopped", "sent", sent)
			return nil
		case <-ticker.C:
			msg := walk.step(cfg.Symbols)
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			err = w.WriteMessages(ctx, kafka.Message{Key: []byte(msg.Symbol), Value: payload})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("kafka write failed", "error", err)
				continue
			}
			sent++
		}
	}
}
