package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a read-only WebSocket connection to a tick feed. A Client is
// single use: once closed or failed it cannot be reconnected.
type Client interface {
	// Connect performs the opening handshake and starts reading.
	Connect(ctx context.Context) error

	// Close sends a close frame and releases the socket. Safe to call twice.
	Close() error

	// Frames delivers data messages in arrival order.
	Frames() <-chan Frame

	// Err delivers at most one error: the failure that ended the read loop.
	// Nothing is delivered after Close.
	Err() <-chan error

	Connected() bool
	Stats() ClientStats
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	frames chan Frame
	errc   chan error
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	delivered atomic.Int64
	dropped   atomic.Int64
	lastFrame atomic.Int64 // unix nanos
}

// NewClient creates a client for cfg.URL. It does not dial.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClientConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaults.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, cfg.BufferSize),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrAlreadyClosed
	}

	header := c.cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("handshake rejected with HTTP %d: %w", resp.StatusCode, err)
		}
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}

	// Any sign of life from the server pushes the read deadline out. A feed
	// that goes quiet for PingTimeout fails the next read.
	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendDeadline(conn)
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		c.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	go c.readLoop(conn)
	go c.keepalive(conn)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.once.Do(func() { close(c.done) })

	if conn == nil {
		return nil
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	return conn.Close()
}

func (c *client) Frames() <-chan Frame { return c.frames }

func (c *client) Err() <-chan error { return c.errc }

func (c *client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *client) Stats() ClientStats {
	stats := ClientStats{
		Connected: c.Connected(),
		Frames:    c.delivered.Load(),
		Dropped:   c.dropped.Load(),
	}
	if ns := c.lastFrame.Load(); ns > 0 {
		stats.LastFrameAt = time.Unix(0, ns)
	}
	return stats
}

func (c *client) extendDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
}

func (c *client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		at := time.Now()
		if err != nil {
			c.report(classify(err))
			return
		}
		c.extendDeadline(conn)
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		select {
		case c.frames <- Frame{Data: data, ReceivedAt: at}:
			c.delivered.Add(1)
			c.lastFrame.Store(at.UnixNano())
		case <-c.done:
			return
		default:
			if c.dropped.Add(1)%100 == 1 {
				c.logger.Warn("frame buffer full, dropping frames", "dropped", c.dropped.Load())
			}
		}
	}
}

func (c *client) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			if err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// report hands err to the owner unless the client was closed on purpose.
func (c *client) report(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.errc <- err:
	default:
	}
}

func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrStaleConnection, err)
	}
	return err
}
