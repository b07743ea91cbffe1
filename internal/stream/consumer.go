// Package stream owns the connection to the action stream: connect, read,
// decode, reconnect with a fixed delay, and hand records downstream in
// arrival order.
package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nearbridge/internal/model"
)

// State is the consumer's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Conn is one open stream connection.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport opens stream connections. The production implementation wraps a
// WebSocket dialer; tests inject a scripted fake.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Handler receives each decoded record, in arrival order, synchronously with
// the read loop.
type Handler func(record model.Record)

// upstreamFilter is the neardata subscription message sent after connect.
type upstreamFilter struct {
	Secret           string          `json:"secret"`
	Filter           []accountFilter `json:"filter"`
	FetchPastActions int             `json:"fetch_past_actions"`
}

type accountFilter struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// Config holds runtime settings for the consumer.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	Accounts       []string
}

// Consumer drives the connect/read/reconnect loop. It owns the transport
// connection exclusively; records are handed off before the next read.
type Consumer struct {
	cfg       Config
	transport Transport
	handler   Handler
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

func NewConsumer(cfg Config, transport Transport, handler Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Consumer{
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		logger:    logger,
		state:     StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes the consume loop until the context is cancelled. Connection
// and read failures never end the loop; they trigger a reconnect after the
// configured constant delay.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.setState(StateShuttingDown)
			return nil
		}

		c.setState(StateConnecting)
		c.logger.Info("connecting to stream", zap.String("url", c.cfg.URL))

		conn, err := c.transport.Dial(ctx, c.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateShuttingDown)
				return nil
			}
			c.logger.Warn("stream connect failed", zap.Error(err))
			if !c.waitReconnect(ctx) {
				return nil
			}
			continue
		}

		c.setState(StateConnected)
		c.logger.Info("stream connected", zap.Int("accounts", len(c.cfg.Accounts)))

		readErr := c.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			c.setState(StateShuttingDown)
			return nil
		}

		c.logger.Warn("stream disconnected", zap.Error(readErr))
		if !c.waitReconnect(ctx) {
			return nil
		}
	}
}

// waitReconnect sleeps the fixed reconnect delay. The delay is constant by
// design: the upstream endpoint is expected to come back quickly. Returns
// false when the context was cancelled during the wait.
func (c *Consumer) waitReconnect(ctx context.Context) bool {
	c.setState(StateReconnecting)
	c.logger.Info("reconnecting", zap.Duration("delay", c.cfg.ReconnectDelay))

	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.setState(StateShuttingDown)
		return false
	case <-timer.C:
		return true
	}
}

// consume sends the upstream filter and reads until the connection fails or
// the context is cancelled.
func (c *Consumer) consume(ctx context.Context, conn Conn) error {
	filterMsg := upstreamFilter{
		Secret:           "tmp",
		Filter:           make([]accountFilter, 0, len(c.cfg.Accounts)),
		FetchPastActions: 0,
	}
	for _, account := range c.cfg.Accounts {
		filterMsg.Filter = append(filterMsg.Filter, accountFilter{AccountID: account, Status: "SUCCESS"})
	}
	if err := conn.WriteJSON(filterMsg); err != nil {
		return err
	}

	// Unblock the pending read when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := model.DecodeStreamMessage(data)
		if err != nil {
			// Malformed frame: skip it, keep the connection.
			c.logger.Warn("skipping undecodable message", zap.Error(err))
			continue
		}

		for _, action := range msg.Actions {
			if ctx.Err() != nil {
				return nil
			}
			c.handler(model.RecordFromAction(action))
		}
	}
}
