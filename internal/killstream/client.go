// Package killstream consumes a websocket killmail feed and stores what it receives.
package killstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"killboard-stats/internal/logging"
	"killboard-stats/internal/observability"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("killstream client closed")

// Source delivers raw feed messages.
type Source interface {
	Messages() <-chan []byte
}

// Config configures websocket client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the message channel.
	Buffer int
}

// DefaultConfig returns default websocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// Client is a reconnecting websocket feed client built on gorilla/websocket.
type Client struct {
	endpoint string
	config   Config
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// channels are re-sent after every reconnect
	channels   []string
	channelsMu sync.Mutex

	messages chan []byte

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewClient connects to endpoint and starts reading.
func NewClient(ctx context.Context, endpoint string, config *Config, logger *log.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		messages: make(chan []byte, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Messages returns the channel of raw feed messages. It is closed by Close.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// Subscribe asks the feed for channel. The subscription is repeated after
// reconnects, including when this first send fails.
func (c *Client) Subscribe(channel string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.channelsMu.Lock()
	c.channels = append(c.channels, channel)
	c.channelsMu.Unlock()

	return c.sendSubscribe(channel)
}

func (c *Client) sendSubscribe(channel string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errors.New("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(subscribeRequest{Action: "sub", Channel: channel}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the message channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.messages)
	return nil
}

// readLoop reads frames and forwards them until Close.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.logger.Warn("killstream read failed, reconnecting", "err", err, "delay", reconnectDelay)
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		if isControl(message) {
			continue
		}

		// Block until the consumer keeps up; killmails are never dropped.
		select {
		case c.messages <- message:
		case <-c.done:
			return
		}
	}
}

// reconnect replaces the connection and re-sends subscriptions.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("killstream reconnect failed", "err", err)
		return
	}
	observability.RecordReconnect()

	c.channelsMu.Lock()
	channels := append([]string(nil), c.channels...)
	c.channelsMu.Unlock()

	for _, ch := range channels {
		if err := c.sendSubscribe(ch); err != nil {
			c.logger.Warn("killstream resubscribe failed", "channel", ch, "err", err)
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection surfaces as a read error.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

type subscribeRequest struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// isControl reports whether a frame is a feed control message such as a
// subscription acknowledgement rather than a killmail.
func isControl(message []byte) bool {
	var probe struct {
		Action     string          `json:"action"`
		KillmailID json.RawMessage `json:"killmail_id"`
	}
	if err := json.Unmarshal(message, &probe); err != nil {
		return false
	}
	return probe.Action != "" && probe.KillmailID == nil
}

var _ Source = (*Client)(nil)
