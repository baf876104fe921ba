package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置（Addr 为空时禁用流转发）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（Broker 为空时禁用MQTT接入）
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// UpstreamConfig 上游心率源配置
type UpstreamConfig struct {
	// WSURL 上游WebSocket地址，如 "ws://localhost:8080/heartrate"
	WSURL string
	// MaxReconnectAttempts 达到该次数后向订阅端发送 maxRetriesReached 通知
	// （连接管理器本身会继续按退避调度重连）
	MaxReconnectAttempts int
	// HandshakeTimeout 建连超时
	HandshakeTimeout time.Duration
}

// HubConfig 实时推送配置
type HubConfig struct {
	// SendQueueSize 每个会话的发送队列长度，队列满时丢弃该会话的消息
	SendQueueSize int
	// RecentWindow requestRecentData 返回的时间窗口
	RecentWindow time.Duration
	// RecentLimit requestRecentData 返回的最大记录数
	RecentLimit int
	// WriteTimeout 单个会话的写超时
	WriteTimeout time.Duration
}

// Config pulse-link 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Upstream UpstreamConfig
	Hub      HubConfig

	HTTP struct {
		Addr string
	}

	Stream struct {
		// Name 持久化成功后转发到的 Redis Stream
		Name string
		// MaxLen XADD 近似裁剪长度
		MaxLen int64
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "pulselink")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "pulse-link")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "pulse/heartrate")
	cfg.MQTT.QoS = 1

	cfg.Upstream.WSURL = getEnv("UPSTREAM_WS_URL", "ws://localhost:8080/heartrate")
	cfg.Upstream.MaxReconnectAttempts = getEnvInt("UPSTREAM_MAX_RECONNECT", 10)
	cfg.Upstream.HandshakeTimeout = 10 * time.Second

	cfg.Hub.SendQueueSize = getEnvInt("HUB_SEND_QUEUE", 64)
	cfg.Hub.RecentWindow = 30 * time.Minute
	cfg.Hub.RecentLimit = 100
	cfg.Hub.WriteTimeout = 5 * time.Second

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":3000")

	cfg.Stream.Name = getEnv("STREAM_NAME", "pulse:data:stream")
	cfg.Stream.MaxLen = int64(getEnvInt("STREAM_MAXLEN", 100000))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
