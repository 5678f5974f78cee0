package moderation

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the moderation counters. A nil *Metrics records nothing.
type Metrics struct {
	decisions   *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	autobans    prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custos",
			Name:      "moderation_decisions_total",
			Help:      "Moderation commands by command and outcome.",
		}, []string{"command", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custos",
			Name:      "rank_resolutions_total",
			Help:      "Effective rank resolutions by source.",
		}, []string{"source"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custos",
			Name:      "rate_limited_total",
			Help:      "Commands rejected by a moderator cooldown.",
		}, []string{"command"}),
		autobans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "custos",
			Name:      "autobans_total",
			Help:      "Bans triggered by reaching the warning threshold.",
		}),
	}
	reg.MustRegister(m.decisions, m.resolutions, m.rateLimited, m.autobans)
	return m
}

func (m *Metrics) decision(cmd Command, outcome Outcome) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(cmd), outcome.String()).Inc()
}

func (m *Metrics) resolution(source Source) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) throttled(cmd Command) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(string(cmd)).Inc()
}

func (m *Metrics) autoban() {
	if m == nil {
		return
	}
	m.autobans.Inc()
}
