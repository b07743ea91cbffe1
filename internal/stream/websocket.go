package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport dials the action stream over WebSocket.
type WebSocketTransport struct {
	HandshakeTimeout time.Duration
}

func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{HandshakeTimeout: 10 * time.Second}
}

func (t *WebSocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  t.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}

// ReadMessage returns the next text or binary frame. Control frames are
// handled by the underlying connection.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
