// Package metrics exposes gateway counters over Prometheus. Tests use the
// Noop implementation; the serve path registers the Prom implementation
// and mounts promhttp on /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts gateway pipeline events.
type Metrics interface {
	IncRequest(operation, outcome string)
	IncRateLimitRejection(class string)
	IncFinding(category string)
	IncAuditWriteFailure()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncRequest(string, string)    {}
func (Noop) IncRateLimitRejection(string) {}
func (Noop) IncFinding(string)            {}
func (Noop) IncAuditWriteFailure()        {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	requests           *prometheus.CounterVec
	rateLimitRejected  *prometheus.CounterVec
	findings           *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
	once               sync.Once
}

// NewProm creates and registers the gateway counters under the given namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Gateway requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected by rate limiting, per class",
		}, []string{"class"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_findings_total",
			Help:      "Injection detector findings by category",
		}, []string{"category"}),
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit log writes that failed (request outcome unaffected)",
		}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.requests, p.rateLimitRejected, p.findings, p.auditWriteFailures)
	})
}

func (p *Prom) IncRequest(operation, outcome string) {
	p.requests.WithLabelValues(operation, outcome).Inc()
}

func (p *Prom) IncRateLimitRejection(class string) {
	p.rateLimitRejected.WithLabelValues(class).Inc()
}

func (p *Prom) IncFinding(category string) {
	p.findings.WithLabelValues(category).Inc()
}

func (p *Prom) IncAuditWriteFailure() {
	p.auditWriteFailures.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
