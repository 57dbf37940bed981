package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CoinRoute/internal/domain/models"
	drepo "CoinRoute/internal/domain/repository"
	"CoinRoute/pkg/logger"
)

// Client implements a SignalStream backed by a strategy engine's
// WebSocket feed.
type Client struct {
	apiKey         string
	url            string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	bufferSize     int
	log            *logger.Logger

	// mu guards conn and connected. The websocket allows one
	// concurrent writer, so every write goes through it too.
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type Config struct {
	URL            string
	APIKey         string
	Channels       []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	BufferSize     int
}

// New creates a SignalStream over the configured WebSocket endpoint.
func New(cfg Config, log *logger.Logger) drepo.SignalStream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &Client{
		apiKey:         cfg.APIKey,
		url:            cfg.URL,
		channels:       cfg.Channels,
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		bufferSize:     cfg.BufferSize,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.url
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.url, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("signal stream connected", logger.String("url", c.url))
	return nil
}

// Subscribe subscribes to the configured strategy channels.
func (c *Client) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		c.log.Info("subscribed", logger.String("channel", ch))
	}
	return nil
}

// current snapshots the active connection.
func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

type wsFrame struct {
	Type string           `json:"type"`
	Data []*models.Signal `json:"data"`
}

// Read streams signals and errors until the context ends or the
// connection drops. Backpressure drops frames rather than stalling the
// socket.
func (c *Client) Read(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	signals := make(chan *models.Signal, c.bufferSize)
	errs := make(chan error, 1)
	conn := c.current()

	// ping loop, pinned to this connection so a reconnect retires it
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				stale := c.conn != conn
				if !stale && conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
				c.mu.Unlock()
				if stale {
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(signals)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var frame wsFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-signal frames
					continue
				}
				if frame.Type != "signal" {
					continue
				}
				for _, sig := range frame.Data {
					if sig == nil {
						continue
					}
					select {
					case signals <- sig:
					default:
						c.log.Warn("signal dropped on backpressure",
							logger.String("symbol", sig.Symbol))
					}
				}
			}
		}
	}()

	return signals, errs
}

// Reconnect closes and reconnects, then resubscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
