package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Conn 会话底层连接（*websocket.Conn 满足该接口，测试用fake替代）
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session 一个已连接的订阅会话
// 每个会话有独立的有界发送队列和写goroutine：
// 慢会话或死连接只影响自身，不阻塞广播
type Session struct {
	ID string

	hub      *Hub
	conn     Conn
	send     chan Envelope
	liveFeed atomic.Bool
	closed   sync.Once
}

// LiveFeedEnabled 是否接收实时广播
func (s *Session) LiveFeedEnabled() bool {
	return s.liveFeed.Load()
}

// enqueue 非阻塞入队，队列满时丢弃该帧
// 投递是尽力而为：单个会话消费不动不能拖住广播路径
func (s *Session) enqueue(env Envelope) bool {
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// close 关闭发送队列与底层连接（幂等）
func (s *Session) close() {
	s.closed.Do(func() {
		close(s.send)
		_ = s.conn.Close()
	})
}

// writePump 会话写循环：消费发送队列直到会话关闭
// 写超时或写失败视为死连接，注销该会话
func (s *Session) writePump() {
	for env := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
		if err := s.conn.WriteJSON(env); err != nil {
			s.hub.logger.Debug("Session write failed, dropping session",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
			s.hub.Unsubscribe(s)
			// 排空队列，避免 Unsubscribe 之前的入队方残留
			for range s.send {
			}
			return
		}
	}
}

// readPump 会话读循环：处理订阅端发来的请求
func (s *Session) readPump() {
	defer s.hub.Unsubscribe(s)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			s.hub.logger.Debug("Ignoring malformed client message",
				zap.String("session_id", s.ID),
			)
			continue
		}

		switch env.Event {
		case EventRequestRecentData:
			// 只回给发起请求的会话，不广播
			s.hub.serveRecent(s)
		case EventSetLiveFeed:
			var req struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.Unmarshal(env.Data, &req); err == nil {
				s.liveFeed.Store(req.Enabled)
			}
		default:
			s.hub.logger.Debug("Unhandled client event",
				zap.String("session_id", s.ID),
				zap.String("event", env.Event),
			)
		}
	}
}
