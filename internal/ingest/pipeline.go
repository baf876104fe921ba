package ingest

import (
	"context"

	"go.uber.org/zap"

	"pulse-link/internal/domain"
	"pulse-link/internal/metrics"
	"pulse-link/internal/parser"
	"pulse-link/internal/repository"
)

// Broadcaster 实时推送端（由 hub 实现）
type Broadcaster interface {
	Broadcast(record domain.HeartRateRecord)
}

// Relay 下游流转发端（由 stream 包实现，可为 nil 表示禁用）
type Relay interface {
	Publish(ctx context.Context, record domain.HeartRateRecord) error
}

// Pipeline 读数处理管线：解析 → 校验 → 落库 → 广播 → 流转发
// WebSocket 链路与 MQTT 接入共用同一条管线
type Pipeline struct {
	parser  *parser.Parser
	repo    repository.HeartRateRepository
	hub     Broadcaster
	relay   Relay
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPipeline 创建处理管线
func NewPipeline(
	p *parser.Parser,
	repo repository.HeartRateRepository,
	hub Broadcaster,
	relay Relay,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		parser:  p,
		repo:    repo,
		hub:     hub,
		relay:   relay,
		metrics: m,
		logger:  logger,
	}
}

// Process 处理一条上游原始报文
// 解析失败与越界读数都只记录日志后丢弃，连接保持打开；
// 落库失败记录为独立的失败模式，但不阻塞广播
// （实时视图不能因为存储故障而静默断流）
func (p *Pipeline) Process(ctx context.Context, payload []byte) {
	reading, err := p.parser.Parse(payload)
	if err != nil {
		p.metrics.ReadingsUnparsable.Inc()
		p.logger.Warn("Failed to parse upstream message",
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return
	}

	if !reading.Valid() {
		p.metrics.ReadingsInvalid.Inc()
		p.logger.Warn("Dropping out-of-range heart rate reading",
			zap.Int("heart_rate", reading.HeartRate),
			zap.Error(domain.ErrInvalidReading),
		)
		return
	}

	// 落库在广播之前；失败时记录ID为0继续广播（该时刻的数据点丢弃，不重试）
	record, err := p.repo.Insert(ctx, reading)
	if err != nil {
		p.metrics.StoreWriteFailures.Inc()
		p.logger.Error("Store unavailable, reading not persisted",
			zap.Int("heart_rate", reading.HeartRate),
			zap.Error(err),
		)
		record = domain.HeartRateRecord{HeartRate: reading.HeartRate, Timestamp: reading.Timestamp}
	}

	p.hub.Broadcast(record)
	p.metrics.ReadingsIngested.Inc()

	if p.relay != nil {
		if err := p.relay.Publish(ctx, record); err != nil {
			p.metrics.RelayFailures.Inc()
			p.logger.Error("Failed to relay record to stream", zap.Error(err))
		}
	}
}
