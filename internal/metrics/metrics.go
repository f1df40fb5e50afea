// Package metrics exposes Prometheus collectors for guide validation runs.
// Long sandbox runs against a live engine are scraped via the optional
// /metrics listener; short runs still aggregate the same counters for tests.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Statement outcomes used as label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Recorder aggregates run metrics on a private registry so concurrent tests
// never collide on the global default.
type Recorder struct {
	registry   *prometheus.Registry
	sections   prometheus.Counter
	statements *prometheus.CounterVec
	findings   *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewRecorder constructs a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		sections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqlguide_sections_total",
			Help: "Guide sections processed.",
		}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlguide_statements_total",
			Help: "Statements processed by outcome.",
		}, []string{"outcome"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlguide_findings_total",
			Help: "Findings reported by check.",
		}, []string{"check"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sqlguide_statement_duration_seconds",
			Help:    "Wall time per executed statement.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
	registry.MustRegister(r.sections, r.statements, r.findings, r.duration)
	return r
}

// IncSection counts one processed section.
func (r *Recorder) IncSection() {
	r.sections.Inc()
}

// ObserveStatement records one statement with its outcome. Duration is only
// observed for statements that actually ran.
func (r *Recorder) ObserveStatement(outcome string, d time.Duration) {
	r.statements.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		r.duration.Observe(d.Seconds())
	}
}

// AddFindings counts findings attributed to a check.
func (r *Recorder) AddFindings(check string, n int) {
	if n > 0 {
		r.findings.WithLabelValues(check).Add(float64(n))
	}
}

// Handler serves the recorder's registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr and returns the listener's address and a
// shutdown function. The empty port form ("127.0.0.1:0") is supported for
// tests.
func (r *Recorder) Serve(addr string) (string, func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return ln.Addr().String(), srv.Shutdown, nil
}
