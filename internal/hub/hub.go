package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulse-link/internal/domain"
	"pulse-link/internal/metrics"
)

// RecentDataSource requestRecentData 的数据来源（历史查询引擎实现）
type RecentDataSource interface {
	FetchRecent(ctx context.Context, window time.Duration, limit int) []domain.HeartRateRecord
}

// Options 推送中心参数
type Options struct {
	// SendQueueSize 每个会话的发送队列长度
	SendQueueSize int
	// RecentWindow / RecentLimit requestRecentData 的时间窗口与记录数上限
	RecentWindow time.Duration
	RecentLimit  int
	// WriteTimeout 单个会话的写超时，超时视为死连接
	WriteTimeout time.Duration
}

// Hub 实时推送中心
// 持有全部订阅会话（其他组件不得修改会话集合），
// 广播对每个会话尽力投递，单个会话的失败不影响其他会话
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	lastStatus ConnectionStatus

	recent       RecentDataSource
	logger       *zap.Logger
	metrics      *metrics.Metrics
	queueSize    int
	recentWindow time.Duration
	recentLimit  int
	writeTimeout time.Duration
}

// NewHub 创建推送中心
func NewHub(opts Options, recent RecentDataSource, m *metrics.Metrics, logger *zap.Logger) *Hub {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 64
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 30 * time.Minute
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 100
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	return &Hub{
		sessions:     make(map[string]*Session),
		recent:       recent,
		logger:       logger,
		metrics:      m,
		queueSize:    opts.SendQueueSize,
		recentWindow: opts.RecentWindow,
		recentLimit:  opts.RecentLimit,
		writeTimeout: opts.WriteTimeout,
	}
}

// Subscribe 注册一个新会话并启动其读写循环
// 注册时立即下发当前上游连接状态
func (h *Hub) Subscribe(conn Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Envelope, h.queueSize),
	}
	s.liveFeed.Store(true)

	h.mu.Lock()
	h.sessions[s.ID] = s
	count := len(h.sessions)
	// 注册当下就把最近一次上游状态放进队列，避免与并发关闭竞争
	s.enqueue(Envelope{Event: EventConnectionStatus, Data: h.lastStatus})
	h.mu.Unlock()

	h.metrics.ActiveSessions.Set(float64(count))

	go s.writePump()
	go s.readPump()

	h.logger.Info("Client connected", zap.String("session_id", s.ID))
	return s
}

// Unsubscribe 注销会话（幂等）
func (h *Hub) Unsubscribe(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	if ok {
		delete(h.sessions, s.ID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}

	// 此时不再有持有读锁的广播方，可以安全关闭发送队列
	s.close()
	h.metrics.ActiveSessions.Set(float64(count))
	h.logger.Info("Client disconnected", zap.String("session_id", s.ID))
}

// Broadcast 将一条已持久化的读数推送给全部订阅会话
func (h *Hub) Broadcast(record domain.HeartRateRecord) {
	env := Envelope{Event: EventHeartRateData, Data: record}

	h.mu.RLock()
	for _, s := range h.sessions {
		if !s.LiveFeedEnabled() {
			continue
		}
		if !s.enqueue(env) {
			h.logger.Warn("Session send queue full, dropping frame",
				zap.String("session_id", s.ID),
			)
		}
	}
	h.mu.RUnlock()

	h.metrics.BroadcastsSent.Inc()
}

// NotifyConnectionStatus 向全部会话广播上游连接状态变化
// 最近一次状态被缓存，新会话注册时立即下发
func (h *Hub) NotifyConnectionStatus(status ConnectionStatus) {
	env := Envelope{Event: EventConnectionStatus, Data: status}

	h.mu.Lock()
	h.lastStatus = status
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		s.enqueue(env)
	}
	h.mu.Unlock()
}

// Count 当前会话数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown 关闭全部会话
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	h.metrics.ActiveSessions.Set(0)
}

// serveRecent 响应单个会话的 requestRecentData 请求
func (h *Hub) serveRecent(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records := h.recent.FetchRecent(ctx, h.recentWindow, h.recentLimit)

	// 回包时会话可能已注销，入队必须在读锁下检查成员资格
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	s.enqueue(Envelope{Event: EventRecentData, Data: records})
}
