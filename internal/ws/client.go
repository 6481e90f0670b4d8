package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a websocket connection to the exchange.
type Client interface {
	// Connect establishes the connection and starts the read loop.
	Connect(ctx context.Context) error
	// Close tears the connection down. Safe to call more than once.
	Close() error
	// Send writes a command to the connection.
	Send(ctx context.Context, cmd Command) error
	// Messages returns the channel of inbound frames.
	Messages() <-chan TimestampedMessage
	// Errors returns the channel of fatal connection errors.
	Errors() <-chan error
	// IsConnected reports whether the connection is live.
	IsConnected() bool
}

type wsClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	closed    atomic.Bool

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup

	lastPing atomic.Int64 // unix nanos of last ping from the server
}

// NewClient builds a client for the given config.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &wsClient{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *wsClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}

	header := http.Header{}
	if c.cfg.Authorization != "" {
		header.Set("Authorization", c.cfg.Authorization)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial %s: status %d: %w", c.cfg.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.lastPing.Store(time.Now().UnixNano())
	conn.SetPingHandler(func(appData string) error {
		c.lastPing.Store(time.Now().UnixNano())
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
	})

	c.connected.Store(true)
	c.wg.Add(2)
	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Info("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *wsClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	c.connected.Store(false)
	c.wg.Wait()
	return nil
}

func (c *wsClient) Send(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return ErrNotConnected
	}
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("websocket send %s: %w", cmd.Cmd, err)
	}
	return nil
}

func (c *wsClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *wsClient) Errors() <-chan error                { return c.errors }
func (c *wsClient) IsConnected() bool                   { return c.connected.Load() }

func (c *wsClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	defer c.connected.Store(false)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.reportError(fmt.Errorf("websocket read: %w", err))
			}
			return
		}
		msg := TimestampedMessage{Data: data, ReceivedAt: time.Now()}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("websocket message buffer full, dropping frame")
		}
	}
}

func (c *wsClient) heartbeatLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			last := time.Unix(0, c.lastPing.Load())
			if time.Since(last) > c.cfg.PingTimeout {
				c.reportError(ErrStaleConnection)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *wsClient) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}
