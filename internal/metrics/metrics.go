package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pulselink"

// Metrics 服务监控指标
type Metrics struct {
	ReadingsIngested   prometheus.Counter
	ReadingsUnparsable prometheus.Counter
	ReadingsInvalid    prometheus.Counter
	StoreWriteFailures prometheus.Counter
	BroadcastsSent     prometheus.Counter
	RelayFailures      prometheus.Counter
	UpstreamReconnects prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

// New 创建指标并注册到默认Registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry 创建指标并注册到指定Registry（测试用独立Registry）
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Valid readings persisted and broadcast",
		}),
		ReadingsUnparsable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_unparsable_total",
			Help:      "Upstream messages dropped as unparsable",
		}),
		ReadingsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_invalid_total",
			Help:      "Parsed readings dropped as out of range",
		}),
		StoreWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Persistence write failures (reading still broadcast)",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_sent_total",
			Help:      "Readings fanned out to subscriber sessions",
		}),
		RelayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_failures_total",
			Help:      "Redis stream publish failures",
		}),
		UpstreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_reconnects_total",
			Help:      "Upstream reconnect attempts",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Currently connected dashboard sessions",
		}),
	}

	reg.MustRegister(
		m.ReadingsIngested,
		m.ReadingsUnparsable,
		m.ReadingsInvalid,
		m.StoreWriteFailures,
		m.BroadcastsSent,
		m.RelayFailures,
		m.UpstreamReconnects,
		m.ActiveSessions,
	)

	return m
}
