package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-link/internal/domain"
	"pulse-link/internal/metrics"
)

// fakeSessionConn 订阅端连接fake：记录写出的信封，可注入挂死的写
type fakeSessionConn struct {
	mu      sync.Mutex
	written []Envelope

	// hang 非nil时 WriteJSON 阻塞在该通道上
	hang chan struct{}

	inbound   chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSessionConn() *fakeSessionConn {
	return &fakeSessionConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeSessionConn) WriteJSON(v interface{}) error {
	if c.hang != nil {
		select {
		case <-c.hang:
		case <-c.closed:
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v.(Envelope))
	return nil
}

func (c *fakeSessionConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.inbound:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, context.Canceled
	}
}

func (c *fakeSessionConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeSessionConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeSessionConn) snapshot() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeSessionConn) countEvent(event string) int {
	n := 0
	for _, env := range c.snapshot() {
		if env.Event == event {
			n++
		}
	}
	return n
}

type fakeRecentSource struct {
	records []domain.HeartRateRecord
}

func (f *fakeRecentSource) FetchRecent(ctx context.Context, window time.Duration, limit int) []domain.HeartRateRecord {
	return f.records
}

func newTestHub(opts Options, recent RecentDataSource) *Hub {
	if recent == nil {
		recent = &fakeRecentSource{}
	}
	return NewHub(opts, recent, metrics.NewWithRegistry(prometheus.NewRegistry()), zap.NewNop())
}

func TestSubscribe_ReceivesCachedConnectionStatus(t *testing.T) {
	h := newTestHub(Options{}, nil)

	// 会话注册前上游已断开，注册时应立即收到缓存的最近状态
	h.NotifyConnectionStatus(ConnectionStatus{Connected: false, Error: "connection refused"})

	conn := newFakeSessionConn()
	s := h.Subscribe(conn)
	defer h.Unsubscribe(s)

	require.Eventually(t, func() bool {
		return len(conn.snapshot()) >= 1
	}, time.Second, 5*time.Millisecond)

	first := conn.snapshot()[0]
	assert.Equal(t, EventConnectionStatus, first.Event)
	status, ok := first.Data.(ConnectionStatus)
	require.True(t, ok)
	assert.False(t, status.Connected)
	assert.Equal(t, "connection refused", status.Error)
}

func TestBroadcast_HungSessionDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(Options{SendQueueSize: 2}, nil)

	conn1 := newFakeSessionConn()
	conn2 := newFakeSessionConn()
	conn3 := newFakeSessionConn()
	// 2号会话的写永远不返回
	conn2.hang = make(chan struct{})

	s1 := h.Subscribe(conn1)
	s2 := h.Subscribe(conn2)
	s3 := h.Subscribe(conn3)

	for i := 0; i < 4; i++ {
		h.Broadcast(domain.HeartRateRecord{ID: int64(i + 1), HeartRate: 70 + i, Timestamp: time.Now()})
	}

	// 1号和3号必须收齐4条，2号挂死、队列溢出丢帧不影响它们
	require.Eventually(t, func() bool {
		return conn1.countEvent(EventHeartRateData) == 4 &&
			conn3.countEvent(EventHeartRateData) == 4
	}, time.Second, 5*time.Millisecond)

	close(conn2.hang)
	h.Unsubscribe(s1)
	h.Unsubscribe(s2)
	h.Unsubscribe(s3)
}

func TestSetLiveFeed_PausesBroadcastDelivery(t *testing.T) {
	h := newTestHub(Options{}, nil)

	conn := newFakeSessionConn()
	s := h.Subscribe(conn)
	defer h.Unsubscribe(s)

	conn.inbound <- []byte(`{"event": "setLiveFeed", "data": {"enabled": false}}`)
	require.Eventually(t, func() bool {
		return !s.LiveFeedEnabled()
	}, time.Second, 5*time.Millisecond)

	h.Broadcast(domain.HeartRateRecord{ID: 1, HeartRate: 72, Timestamp: time.Now()})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, conn.countEvent(EventHeartRateData))

	// 重新开启后恢复投递
	conn.inbound <- []byte(`{"event": "setLiveFeed", "data": {"enabled": true}}`)
	require.Eventually(t, func() bool {
		return s.LiveFeedEnabled()
	}, time.Second, 5*time.Millisecond)

	h.Broadcast(domain.HeartRateRecord{ID: 2, HeartRate: 75, Timestamp: time.Now()})
	require.Eventually(t, func() bool {
		return conn.countEvent(EventHeartRateData) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRequestRecentData_OnlyRequesterReplied(t *testing.T) {
	recent := &fakeRecentSource{records: []domain.HeartRateRecord{
		{ID: 2, HeartRate: 80, Timestamp: time.Now()},
		{ID: 1, HeartRate: 72, Timestamp: time.Now().Add(-time.Second)},
	}}
	h := newTestHub(Options{}, recent)

	requester := newFakeSessionConn()
	other := newFakeSessionConn()
	s1 := h.Subscribe(requester)
	s2 := h.Subscribe(other)
	defer h.Unsubscribe(s1)
	defer h.Unsubscribe(s2)

	requester.inbound <- []byte(`{"event": "requestRecentData"}`)

	require.Eventually(t, func() bool {
		return requester.countEvent(EventRecentData) == 1
	}, time.Second, 5*time.Millisecond)

	var reply Envelope
	for _, env := range requester.snapshot() {
		if env.Event == EventRecentData {
			reply = env
		}
	}
	records, ok := reply.Data.([]domain.HeartRateRecord)
	require.True(t, ok)
	assert.Len(t, records, 2)

	assert.Equal(t, 0, other.countEvent(EventRecentData))
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := newTestHub(Options{}, nil)

	conn := newFakeSessionConn()
	s := h.Subscribe(conn)
	assert.Equal(t, 1, h.Count())

	h.Unsubscribe(s)
	h.Unsubscribe(s)
	assert.Equal(t, 0, h.Count())
}

func TestNotifyConnectionStatus_ReachesAllSessions(t *testing.T) {
	h := newTestHub(Options{}, nil)

	conn1 := newFakeSessionConn()
	conn2 := newFakeSessionConn()
	s1 := h.Subscribe(conn1)
	s2 := h.Subscribe(conn2)
	defer h.Unsubscribe(s1)
	defer h.Unsubscribe(s2)

	h.NotifyConnectionStatus(ConnectionStatus{Connected: true})

	// 注册时的初始状态 + 本次通知
	require.Eventually(t, func() bool {
		return conn1.countEvent(EventConnectionStatus) == 2 &&
			conn2.countEvent(EventConnectionStatus) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestShutdown_ClosesAllSessions(t *testing.T) {
	h := newTestHub(Options{}, nil)

	conn1 := newFakeSessionConn()
	conn2 := newFakeSessionConn()
	h.Subscribe(conn1)
	h.Subscribe(conn2)

	h.Shutdown()
	assert.Equal(t, 0, h.Count())

	select {
	case <-conn1.closed:
	default:
		t.Fatal("conn1 not closed after shutdown")
	}
	select {
	case <-conn2.closed:
	default:
		t.Fatal("conn2 not closed after shutdown")
	}
}
