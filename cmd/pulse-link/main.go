package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pulse-link/internal/config"
	"pulse-link/internal/database"
	"pulse-link/internal/history"
	"pulse-link/internal/httpapi"
	"pulse-link/internal/hub"
	"pulse-link/internal/ingest"
	"pulse-link/internal/logger"
	"pulse-link/internal/metrics"
	"pulse-link/internal/mqtt"
	"pulse-link/internal/parser"
	"pulse-link/internal/repository"
	"pulse-link/internal/service"
	"pulse-link/internal/stream"
	"pulse-link/internal/upstream"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "pulse-link")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting pulse-link service",
		zap.String("upstream_url", cfg.Upstream.WSURL),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	// 持久化层：连不上直接退出（没有可写的存储就不启动采集）
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	m := metrics.New()
	repo := repository.NewPostgresHeartRateRepository(db)
	engine := history.NewEngine(repo, zlog)

	fanout := hub.NewHub(hub.Options{
		SendQueueSize: cfg.Hub.SendQueueSize,
		RecentWindow:  cfg.Hub.RecentWindow,
		RecentLimit:   cfg.Hub.RecentLimit,
		WriteTimeout:  cfg.Hub.WriteTimeout,
	}, engine, m, zlog)

	// 流转发（可选）：未配置 Redis 时禁用
	var relay ingest.Relay
	if cfg.Redis.Addr != "" {
		redisClient := stream.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := stream.Ping(pingCtx, redisClient); err != nil {
			// 转发是旁路：Redis 暂时不可达只告警，发布失败会单独记日志
			zlog.Warn("Redis unreachable, stream relay degraded", zap.Error(err))
		}
		cancel()

		relay = stream.NewPublisher(redisClient, cfg.Stream.Name, cfg.Stream.MaxLen)
		zlog.Info("Stream relay enabled", zap.String("stream", cfg.Stream.Name))
	}

	pipeline := ingest.NewPipeline(parser.New(), repo, fanout, relay, m, zlog)

	link := upstream.NewLink(
		cfg.Upstream,
		upstream.NewWSDialer(cfg.Upstream.HandshakeTimeout),
		pipeline,
		fanout,
		m,
		zlog,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go link.Run(ctx)

	// MQTT接入（可选）：未配置 Broker 时禁用
	var mqttSource *mqtt.Source
	if cfg.MQTT.Broker != "" {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, zlog)
		if err != nil {
			zlog.Error("Failed to connect MQTT ingest source, continuing without it", zap.Error(err))
		} else {
			mqttSource = mqtt.NewSource(&cfg.MQTT, mqttClient, pipeline, zlog)
			go func() {
				if err := mqttSource.Start(ctx); err != nil {
					zlog.Error("MQTT ingest source failed", zap.Error(err))
				}
			}()
		}
	}

	// HTTP 路由
	router := httpapi.NewRouter(zlog)
	router.RegisterDataRoutes(httpapi.NewDataHandler(engine, zlog))
	router.RegisterLiveRoutes(
		httpapi.NewWSHandler(fanout, zlog),
		httpapi.NewHealthHandler(db, link, fanout),
	)
	router.HandleHandler("/metrics", promhttp.Handler())

	server := service.NewServer(cfg.HTTP.Addr, router, zlog)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭：先取消挂起的重连定时器与读循环，再关HTTP与会话
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		zlog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	if mqttSource != nil {
		mqttSource.Stop()
	}
	fanout.Shutdown()

	zlog.Info("Service stopped")
}
