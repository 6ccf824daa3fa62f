package source

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/connection"
)

// fakeReader serves queued messages, then blocks until closed or failed.
type fakeReader struct {
	msgs chan kafka.Message
	fail chan error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{
		msgs: make(chan kafka.Message, len(values)),
		fail: make(chan error, 1),
		done: make(chan struct{}),
	}
	for i, v := range values {
		r.msgs <- kafka.Message{Topic: "ticks", Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	default:
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case err := <-r.fail:
		return kafka.Message{}, err
	case <-r.done:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	return nil
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func testKafka(reader *fakeReader, probeErr error) *Kafka {
	return NewKafka(
		KafkaConfig{Brokers: []string{"broker:9092"}, Topic: "ticks"},
		WithKafkaReader(func(KafkaConfig) KafkaReader { return reader }),
		WithKafkaProbe(func(context.Context, KafkaConfig) error { return probeErr }),
	)
}

func TestParseKafkaURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    KafkaConfig
		wantErr bool
	}{
		{
			name: "single broker",
			raw:  "kafka://localhost:9092/ticks",
			want: KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "ticks"},
		},
		{
			name: "multiple brokers",
			raw:  "kafka://b1:9092,b2:9092/prices.live",
			want: KafkaConfig{Brokers: []string{"b1:9092", "b2:9092"}, Topic: "prices.live"},
		},
		{name: "consumer group", raw: "kafka://b1:9092/prices.live?group=pricestream", wantErr: true},
		{name: "no topic", raw: "kafka://localhost:9092", wantErr: true},
		{name: "no broker", raw: "kafka:///ticks", wantErr: true},
		{name: "wrong scheme", raw: "wss://localhost/ticks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKafkaURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Brokers, got.Brokers)
			assert.Equal(t, tt.want.Topic, got.Topic)
			assert.Equal(t, 10*time.Second, got.DialTimeout)
		})
	}
}

func TestParseKafkaURL_RejectsConsumerGroup(t *testing.T) {
	_, err := ParseKafkaURL("kafka://b1:9092/ticks?group=pricestream")
	assert.ErrorIs(t, err, ErrKafkaGroup)
}

func TestKafka_ReadsTicksAndDropsMalformed(t *testing.T) {
	reader := newFakeReader(
		`{"symbol":"AAPL","price":175.25}`,
		`garbage`,
		`{"symbol":"MSFT","price":410}`,
	)
	k := testKafka(reader, nil)
	rec := &recorder{}
	k.Start(context.Background(), rec)
	defer k.Close()

	require.Eventually(t, func() bool {
		return k.Stats().Received == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"open"}, rec.eventLog())
	assert.Equal(t, connection.SourceOpen, k.State())
	ticks := rec.tickLog()
	require.Len(t, ticks, 2)
	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, "410", ticks[1].Price.String())
	assert.Equal(t, int64(1), k.Stats().Malformed)
}

func TestKafka_ProbeFailure(t *testing.T) {
	reader := newFakeReader()
	k := testKafka(reader, errors.New("connection refused"))
	rec := &recorder{}
	k.Start(context.Background(), rec)

	require.Eventually(t, func() bool {
		return len(rec.eventLog()) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"error", "closed"}, rec.eventLog())
	assert.Equal(t, connection.SourceClosed, k.State())
	assert.False(t, reader.isClosed(), "reader is never created when the probe fails")
}

func TestKafka_ReadErrorReportsErrorThenClosed(t *testing.T) {
	reader := newFakeReader()
	k := testKafka(reader, nil)
	rec := &recorder{}
	k.Start(context.Background(), rec)

	require.Eventually(t, func() bool {
		return k.State() == connection.SourceOpen
	}, time.Second, 5*time.Millisecond)

	reader.fail <- errors.New("leader not available")

	require.Eventually(t, func() bool {
		return len(rec.eventLog()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"open", "error", "closed"}, rec.eventLog())
	assert.True(t, reader.isClosed())
}

func TestKafka_CloseIsSilent(t *testing.T) {
	reader := newFakeReader()
	k := testKafka(reader, nil)
	rec := &recorder{}
	k.Start(context.Background(), rec)

	require.Eventually(t, func() bool {
		return k.State() == connection.SourceOpen
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, k.Close())
	require.NoError(t, k.Close())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"open"}, rec.eventLog())
	assert.True(t, reader.isClosed())
	assert.Equal(t, connection.SourceClosed, k.State())
}

func TestKafka_CloseDuringProbe(t *testing.T) {
	reader := newFakeReader()
	probing := make(chan struct{})
	k := NewKafka(
		KafkaConfig{Brokers: []string{"broker:9092"}, Topic: "ticks"},
		WithKafkaReader(func(KafkaConfig) KafkaReader { return reader }),
		WithKafkaProbe(func(ctx context.Context, _ KafkaConfig) error {
			close(probing)
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	rec := &recorder{}
	k.Start(context.Background(), rec)

	<-probing
	require.NoError(t, k.Close())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.eventLog())
}

func TestFromConfig_Kafka(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Feed.UseSyntheticSource = &off
	cfg.Feed.EndpointURL = "kafka://b1:9092/ticks"
	cfg.Feed.HandshakeTimeout = 3 * time.Second

	got := FromConfig(cfg)
	require.NotNil(t, got.Kafka)
	assert.Equal(t, "kafka", got.Kind())
	assert.Equal(t, []string{"b1:9092"}, got.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, got.Kafka.DialTimeout)

	src := NewFactory(got, nil).NewSource()
	_, ok := src.(*Kafka)
	assert.True(t, ok, "factory builds a Kafka source for kafka:// endpoints")
}
