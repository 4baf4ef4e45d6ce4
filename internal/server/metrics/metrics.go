// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "numeria"

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	logins          *prometheus.CounterVec
	twoFactorChecks *prometheus.CounterVec
	securityEvents  *prometheus.CounterVec
	emails          *prometheus.CounterVec
}

// New registers the collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		twoFactorChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "two_factor_verifications_total",
			Help:      "Second-factor verifications by kind and result.",
		}, []string{"kind", "result"}),
		securityEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Security log entries written, by event.",
		}, []string{"event"}),
		emails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Outbound emails by kind and result.",
		}, []string{"kind", "result"}),
	}
}

// Login counts a login attempt. method is "password" or a provider name.
func (m *Metrics) Login(method, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, outcome).Inc()
}

// TwoFactor counts a second-factor check. kind is "totp" or "backup_code".
func (m *Metrics) TwoFactor(kind string, ok bool) {
	if m == nil {
		return
	}
	m.twoFactorChecks.WithLabelValues(kind, result(ok)).Inc()
}

// SecurityEvent counts a security log entry.
func (m *Metrics) SecurityEvent(event string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(event).Inc()
}

// Email counts an email delivery.
func (m *Metrics) Email(kind string, ok bool) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(kind, result(ok)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
