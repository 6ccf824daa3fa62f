package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

var (
	ErrStaleConnection = errors.New("feed stale: no frames or pongs within ping timeout")
	ErrAlreadyClosed   = errors.New("client already closed")
)

// Frame is one data message read from the feed.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time // When ReadMessage returned, before any parsing
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // e.g. wss://mock.pricestream.local/ticks
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Max time for the opening handshake
	PingInterval     time.Duration // Keepalive ping cadence
	PingTimeout      time.Duration // Silence allowed before the feed counts as stale
	WriteTimeout     time.Duration // Deadline for control frames
	BufferSize       int           // Frames held before new ones are dropped
	MaxMessageSize   int64         // Read limit per frame
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
		MaxMessageSize:   64 << 10,
	}
}

// ClientStats provides statistics about a client.
type ClientStats struct {
	Connected   bool
	Frames      int64 // Frames delivered on Frames()
	Dropped     int64 // Frames dropped because the buffer was full
	LastFrameAt time.Time
}

// SupervisorConfig configures the Connection Supervisor.
type SupervisorConfig struct {
	InitialBackoff time.Duration // First retry delay, and the delay after a successful open
	MaxBackoff     time.Duration // Cap for the doubling retry delay
	EventBuffer    int           // Buffer size for the source event queue
}

// DefaultSupervisorConfig returns sensible defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     32 * time.Second,
		EventBuffer:    64,
	}
}

// SourceState is the lifecycle state of a single source instance.
type SourceState int

const (
	SourceIdle SourceState = iota
	SourceOpening
	SourceOpen
	SourceClosed
)

func (s SourceState) String() string {
	switch s {
	case SourceIdle:
		return "idle"
	case SourceOpening:
		return "opening"
	case SourceOpen:
		return "open"
	case SourceClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Emitter receives callbacks from a running source.
// Implementations must be safe for concurrent use.
type Emitter interface {
	// Open reports that the source is ready and ticks may follow.
	Open()

	// Tick delivers one price observation.
	Tick(t model.Tick)

	// Error reports a transport failure. Every error is recoverable.
	Error(err error)

	// Closed reports that the source has stopped producing ticks.
	Closed()
}

// Source is one instance of a tick producer. Instances are single-use:
// after Close the supervisor asks the factory for a new one.
type Source interface {
	// Start begins producing ticks in the background. It must not block.
	Start(ctx context.Context, emit Emitter)

	// Close tears the source down. Safe to call in any state. Close must not
	// invoke the emitter synchronously.
	Close() error

	// State returns the current lifecycle state.
	State() SourceState
}

// SourceFactory creates fresh source instances.
type SourceFactory interface {
	NewSource() Source
}

// SourceFactoryFunc adapts a function to SourceFactory.
type SourceFactoryFunc func() Source

// NewSource calls f.
func (f SourceFactoryFunc) NewSource() Source {
	return f()
}

// TickSink receives ticks from the current source.
type TickSink interface {
	Add(t model.Tick)
}

// StatusSink receives connection status changes.
type StatusSink interface {
	SetStatus(status model.ConnectionStatus)
}
