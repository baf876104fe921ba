package hub

// 推送通道上的事件名（与前端 websocket-client 约定一致）
const (
	EventHeartRateData     = "heartRateData"
	EventConnectionStatus  = "connectionStatus"
	EventRecentData        = "recentData"
	EventRequestRecentData = "requestRecentData"
	EventSetLiveFeed       = "setLiveFeed"
)

// Envelope 推送通道的消息封装 {event, data}
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ConnectionStatus 上游连接状态通知
// 订阅端据此展示上游健康状况（独立于自身 socket 连通性）
type ConnectionStatus struct {
	Connected         bool   `json:"connected"`
	Error             string `json:"error,omitempty"`
	MaxRetriesReached bool   `json:"maxRetriesReached,omitempty"`
}
