// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionResolutions *prometheus.CounterVec
	GuardDecisions     *prometheus.CounterVec
	InvitationEvents   *prometheus.CounterVec
	NotifyDispatch     *prometheus.CounterVec
	SweepRemoved       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgsession",
			Name:      "session_resolutions_total",
			Help:      "Session lookups by outcome (valid, absent, expired, malformed).",
		}, []string{"result"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgsession",
			Name:      "route_guard_decisions_total",
			Help:      "Route guard outcomes (exempt, allow, anonymous, redirect, error).",
		}, []string{"decision"}),
		InvitationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgsession",
			Name:      "invitation_events_total",
			Help:      "Invitation lifecycle events (created, accepted, revoked, expired, resent).",
		}, []string{"event"}),
		NotifyDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgsession",
			Name:      "invitation_notifications_total",
			Help:      "Invitation notification dispatch results (sent, failed, dropped).",
		}, []string{"result"}),
		SweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgsession",
			Name:      "sweep_records_total",
			Help:      "Records handled by background sweeps (sessions_purged, invitations_expired).",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{
		m.SessionResolutions, m.GuardDecisions, m.InvitationEvents, m.NotifyDispatch, m.SweepRemoved,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SessionResolved(result string) {
	if m != nil {
		m.SessionResolutions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) GuardDecision(decision string) {
	if m != nil {
		m.GuardDecisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) InvitationEvent(event string) {
	if m != nil {
		m.InvitationEvents.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Notify(result string) {
	if m != nil {
		m.NotifyDispatch.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Swept(kind string, n int64) {
	if m != nil && n > 0 {
		m.SweepRemoved.WithLabelValues(kind).Add(float64(n))
	}
}
