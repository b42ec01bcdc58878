package raft

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// noopMetrics discards every report; it is the default sink so ServerCore
// never needs a nil check on the metrics path.
type noopMetrics struct{}

func (noopMetrics) SetTerm(Term)                               {}
func (noopMetrics) SetCommitIndex(LogIndex)                    {}
func (noopMetrics) SetLastAppliedIndex(LogIndex)                {}
func (noopMetrics) SetRole(string)                              {}
func (noopMetrics) ObserveAppenderRPC(PeerID, time.Duration)     {}
func (noopMetrics) MarkAppenderSlow(PeerID, bool)                {}

// PrometheusMetrics is a MetricsSink backed by prometheus/client_golang. It
// exports the current term, commit index and last applied index as gauges,
// the active role as a labelled gauge, and per-peer appender RPC latency
// (histogram) and slowness (gauge); the server id is a constant label on all
// of them. The leader id, group id and follower list are not exported.
type PrometheusMetrics struct {
	term             prometheus.Gauge
	commitIndex      prometheus.Gauge
	lastAppliedIndex prometheus.Gauge
	role             *prometheus.GaugeVec
	appenderRPC      *prometheus.HistogramVec
	appenderSlow     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the raft server's metrics with reg. reg may
// be a dedicated prometheus.Registry per server instance, since metric names
// are not suffixed with server/group id.
func NewPrometheusMetrics(reg prometheus.Registerer, serverID string) *PrometheusMetrics {
	labels := prometheus.Labels{"server_id": serverID}
	m := &PrometheusMetrics{
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_server_term", Help: "current raft term", ConstLabels: labels,
		}),
		commitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_server_commit_index", Help: "highest known committed log index", ConstLabels: labels,
		}),
		lastAppliedIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_server_last_applied_index", Help: "highest log index applied to the state machine", ConstLabels: labels,
		}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raft_server_role", Help: "1 for the currently active role, 0 otherwise", ConstLabels: labels,
		}, []string{"role"}),
		appenderRPC: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "raft_appender_rpc_duration_seconds", Help: "leader appender RPC round-trip latency", ConstLabels: labels,
		}, []string{"peer"}),
		appenderSlow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raft_appender_slow", Help: "1 if the appender to this peer is currently slow", ConstLabels: labels,
		}, []string{"peer"}),
	}
	reg.MustRegister(m.term, m.commitIndex, m.lastAppliedIndex, m.role, m.appenderRPC, m.appenderSlow)
	return m
}

func (m *PrometheusMetrics) SetTerm(term Term) { m.term.Set(float64(term)) }

func (m *PrometheusMetrics) SetCommitIndex(index LogIndex) { m.commitIndex.Set(float64(index)) }

func (m *PrometheusMetrics) SetLastAppliedIndex(index LogIndex) {
	m.lastAppliedIndex.Set(float64(index))
}

func (m *PrometheusMetrics) SetRole(role string) {
	for _, r := range []string{"follower", "candidate", "leader"} {
		if r == role {
			m.role.WithLabelValues(r).Set(1)
		} else {
			m.role.WithLabelValues(r).Set(0)
		}
	}
}

func (m *PrometheusMetrics) ObserveAppenderRPC(peer PeerID, d time.Duration) {
	m.appenderRPC.WithLabelValues(string(peer)).Observe(d.Seconds())
}

func (m *PrometheusMetrics) MarkAppenderSlow(peer PeerID, slow bool) {
	v := 0.0
	if slow {
		v = 1.0
	}
	m.appenderSlow.WithLabelValues(string(peer)).Set(v)
}
