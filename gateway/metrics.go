package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/byteness/trustgate/approval"
)

// Metrics holds the gateway's admission/approval Prometheus collectors,
// registered against a caller-supplied registry so /metrics can be mounted
// independent of the default global registry.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	ApprovalWaitDuration prometheus.Histogram
	PendingApprovals     prometheus.Gauge
}

// NewMetrics creates and registers the gateway's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_requests_total",
			Help: "Admission requests by classification and final HTTP status.",
		}, []string{"classification", "status"}),
		ApprovalWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_approval_wait_seconds",
			Help:    "Time a proxy request spent blocked in the approval rendezvous.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}),
		PendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustgate_pending_approvals",
			Help: "Approvals currently in the PENDING state.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.ApprovalWaitDuration, m.PendingApprovals)
	return m
}

// refreshPendingApprovals recomputes the gauge from the orchestrator's own
// records rather than incrementing/decrementing at each call site, so it
// can't drift out of sync when a record leaves PENDING outside of a
// gateway handler (the background sweeper, a Wait timeout).
func (s *Server) refreshPendingApprovals() {
	pending := 0
	for _, rec := range s.approvals.List() {
		if rec.Status == approval.StatusPending {
			pending++
		}
	}
	s.metrics.PendingApprovals.Set(float64(pending))
}
