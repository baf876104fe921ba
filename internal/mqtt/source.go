package mqtt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pulse-link/internal/config"
	"pulse-link/internal/ingest"
)

// Source 备选MQTT接入源
// 订阅厂家主题并把原始报文送入与WebSocket链路相同的处理管线
type Source struct {
	config   *config.MQTTConfig
	client   *Client
	pipeline *ingest.Pipeline
	logger   *zap.Logger
}

// NewSource 创建MQTT接入源
func NewSource(cfg *config.MQTTConfig, client *Client, pipeline *ingest.Pipeline, logger *zap.Logger) *Source {
	return &Source{
		config:   cfg,
		client:   client,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Start 订阅主题并阻塞直到 ctx 取消
func (s *Source) Start(ctx context.Context) error {
	topic := s.config.Topic
	if topic == "" {
		return fmt.Errorf("mqtt topic not configured")
	}

	if err := s.client.Subscribe(topic, s.config.QoS, func(topic string, payload []byte) error {
		s.pipeline.Process(ctx, payload)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe to heart rate topic: %w", err)
	}

	s.logger.Info("MQTT ingest source started", zap.String("topic", topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅并断开连接
func (s *Source) Stop() {
	if s.config.Topic != "" {
		if err := s.client.Unsubscribe(s.config.Topic); err != nil {
			s.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}
	s.client.Disconnect()
	s.logger.Info("MQTT ingest source stopped")
}
