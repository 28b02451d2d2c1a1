package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the payroll host's Prometheus collectors. Each instance owns
// its registry so tests can build as many handlers as they like.
type Metrics struct {
	registry *prometheus.Registry

	// RunsCreated counts run attempts by outcome (created, empty_roster, rejected, error).
	RunsCreated *prometheus.CounterVec

	// EmployeesSkipped counts employees left out of runs for invalid compensation.
	EmployeesSkipped prometheus.Counter

	// LastRunNet is the total net pay of the most recent run.
	LastRunNet prometheus.Gauge

	// DisbursementUpdates counts ledger callbacks by status and outcome (applied, replayed, rejected).
	DisbursementUpdates *prometheus.CounterVec

	// OpenReports is the number of reports still awaiting ledger callbacks.
	OpenReports prometheus.Gauge

	// ReportDrift counts reports found out of line with their run.
	ReportDrift prometheus.Counter

	// RequestDuration observes HTTP latency by route pattern.
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "runs",
			Name:      "created_total",
			Help:      "Payroll run attempts by outcome.",
		}, []string{"outcome"}),
		EmployeesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "runs",
			Name:      "employees_skipped_total",
			Help:      "Employees excluded from a run for invalid compensation.",
		}),
		LastRunNet: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "payroll",
			Subsystem: "runs",
			Name:      "last_net_amount",
			Help:      "Total net pay of the most recent payroll run.",
		}),
		DisbursementUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "disbursement",
			Name:      "updates_total",
			Help:      "Ledger callbacks by status and outcome.",
		}, []string{"status", "outcome"}),
		OpenReports: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "payroll",
			Subsystem: "disbursement",
			Name:      "open_reports",
			Help:      "Disbursement reports with at least one pending entry.",
		}),
		ReportDrift: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payroll",
			Subsystem: "disbursement",
			Name:      "report_drift_total",
			Help:      "Reports found inconsistent with their run during audit.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payroll",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument records request latency keyed by chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
