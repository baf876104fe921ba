package upstream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer 基于 gorilla/websocket 的上游建连器
type WSDialer struct {
	handshakeTimeout time.Duration
}

// NewWSDialer 创建WebSocket建连器
func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &WSDialer{handshakeTimeout: handshakeTimeout}
}

var _ Dialer = (*WSDialer)(nil)

// Dial 建立到上游中继的WebSocket连接
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
