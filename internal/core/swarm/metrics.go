package swarm

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// 升级失败的阶段标签
const (
	stageInboundConn       = "inbound_conn"
	stageOutboundConn      = "outbound_conn"
	stageInboundSubstream  = "inbound_substream"
	stageOutboundSubstream = "outbound_substream"
)

// Metrics Swarm 的 Prometheus 指标
type Metrics struct {
	connections     prometheus.Gauge
	substreams      *prometheus.CounterVec
	upgradeFailures *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg（reg 为 nil 时不注册）
//
// 同一个 reg 上重复创建时复用已注册的采集器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "p2pcore",
			Subsystem: "swarm",
			Name:      "connections",
			Help:      "Number of live multiplexed connections.",
		}),
		substreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "p2pcore",
			Subsystem: "swarm",
			Name:      "substreams_total",
			Help:      "Substreams fully negotiated, by direction.",
		}, []string{"direction"}),
		upgradeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "p2pcore",
			Subsystem: "swarm",
			Name:      "upgrade_failures_total",
			Help:      "Connection and substream upgrades that failed, by stage.",
		}, []string{"stage"}),
	}
	if reg == nil {
		return m
	}
	m.connections = register(reg, m.connections)
	m.substreams = register(reg, m.substreams)
	m.upgradeFailures = register(reg, m.upgradeFailures)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logger.Warn("注册指标失败", "error", err)
	}
	return c
}

func (m *Metrics) connOpened() { m.connections.Inc() }
func (m *Metrics) connClosed() { m.connections.Dec() }

func (m *Metrics) substreamNegotiated(direction string) {
	m.substreams.WithLabelValues(direction).Inc()
}

func (m *Metrics) upgradeFailed(stage string) {
	m.upgradeFailures.WithLabelValues(stage).Inc()
}
