package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"pulse-link/internal/domain"
)

// Publisher 将已持久化的心率记录转发到 Redis Stream，
// 供下游服务（报警、聚合等）消费
// 转发失败由调用方记录日志，不阻塞采集路径
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewPublisher 创建流转发器
// maxLen > 0 时按近似长度裁剪（XADD MAXLEN ~）
func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish 发布一条记录（JSON负载 + 毫秒时间戳字段）
func (p *Publisher) Publish(ctx context.Context, record domain.HeartRateRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal heart rate record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": record.Timestamp.UnixMilli(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish record to stream %s: %w", p.stream, err)
	}
	return nil
}

// Stream 转发目标流名称
func (p *Publisher) Stream() string {
	return p.stream
}
