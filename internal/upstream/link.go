package upstream

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pulse-link/internal/config"
	"pulse-link/internal/hub"
	"pulse-link/internal/ingest"
	"pulse-link/internal/metrics"
)

// 退避上限：delay = min(2^attempt * 1s, 30s)
const maxBackoffDelay = 30 * time.Second

// Conn 上游连接（*websocket.Conn 满足该接口）
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer 上游建连器（测试用fake替代真实WebSocket拨号）
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// StatusNotifier 上游状态通知端（由 hub 实现）
type StatusNotifier interface {
	NotifyConnectionStatus(status hub.ConnectionStatus)
}

// Link 上游连接管理器
// 独占持有到传感器中继的唯一外部连接，其他组件不得写入连接
// 或持有连接状态；每个进程只有一个 Link
type Link struct {
	url         string
	maxAttempts int

	dialer   Dialer
	pipeline *ingest.Pipeline
	notifier StatusNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger

	state atomic.Int32
	// 重连计数：只在 Run goroutine 中读写，成功建连后归零
	attempts int

	// wait 可取消的退避等待，测试中替换为不走真实时钟的实现
	wait func(ctx context.Context, delay time.Duration) bool
}

// NewLink 创建上游连接管理器
func NewLink(
	cfg config.UpstreamConfig,
	dialer Dialer,
	pipeline *ingest.Pipeline,
	notifier StatusNotifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Link {
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Link{
		url:         cfg.WSURL,
		maxAttempts: maxAttempts,
		dialer:      dialer,
		pipeline:    pipeline,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		wait:        waitTimer,
	}
}

// State 当前连接状态
func (l *Link) State() State {
	return State(l.state.Load())
}

func (l *Link) setState(s State) {
	l.state.Store(int32(s))
}

// Run 连接主循环，阻塞直到 ctx 取消
// 入站报文按到达顺序逐条处理，不并发、不重排
func (l *Link) Run(ctx context.Context) {
	defer l.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		l.setState(StateConnecting)
		l.logger.Info("Connecting to heart rate upstream", zap.String("url", l.url))

		conn, err := l.dialer.Dial(ctx, l.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("Upstream connection failed", zap.Error(err))
			l.notifier.NotifyConnectionStatus(hub.ConnectionStatus{Connected: false, Error: err.Error()})
			if !l.backoff(ctx) {
				return
			}
			continue
		}

		l.setState(StateConnected)
		l.attempts = 0
		l.logger.Info("Connected to heart rate upstream")
		l.notifier.NotifyConnectionStatus(hub.ConnectionStatus{Connected: true})

		err = l.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		l.logger.Warn("Upstream connection closed", zap.Error(err))
		status := hub.ConnectionStatus{Connected: false}
		if err != nil {
			status.Error = err.Error()
		}
		l.notifier.NotifyConnectionStatus(status)

		if !l.backoff(ctx) {
			return
		}
	}
}

// readLoop 消费连接上的报文直到出错或 ctx 取消
func (l *Link) readLoop(ctx context.Context, conn Conn) error {
	// ctx 取消时关闭连接以解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.pipeline.Process(ctx, payload)
	}
}

// backoff 计算退避延迟并等待，返回 false 表示 ctx 已取消
// 达到 maxAttempts 时向订阅端发一次 maxRetriesReached 通知，
// 之后继续按同样的调度重连、计数不归零——后续重连不再另行区分
// （沿用原有行为，意图存疑，见 DESIGN.md）
func (l *Link) backoff(ctx context.Context) bool {
	l.attempts++
	delay := backoffDelay(l.attempts)
	l.setState(StateBackoff)
	l.metrics.UpstreamReconnects.Inc()

	l.logger.Info("Scheduling upstream reconnect",
		zap.Int("attempt", l.attempts),
		zap.Duration("delay", delay),
	)

	if l.attempts == l.maxAttempts {
		l.logger.Error("Max reconnection attempts reached",
			zap.Int("attempts", l.attempts),
		)
		l.notifier.NotifyConnectionStatus(hub.ConnectionStatus{
			Connected:         false,
			MaxRetriesReached: true,
		})
	}

	return l.wait(ctx, delay)
}

// waitTimer 可取消的延时：进程关闭时挂起的重连定时器必须被取消
func waitTimer(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoffDelay 第 attempt 次重连的退避延迟，指数增长、上限30秒
func backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		return maxBackoffDelay
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxBackoffDelay {
		return maxBackoffDelay
	}
	return delay
}
