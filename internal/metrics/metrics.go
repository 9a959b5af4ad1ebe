// Package metrics exposes Prometheus counters for a wheel test run.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

const Namespace = "wheel_tester"

// Recorder tracks per-case outcomes on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	casesTotal    *prometheus.CounterVec
	caseDuration  *prometheus.HistogramVec
	flagsTotal    *prometheus.CounterVec
	launchFailure *prometheus.CounterVec
}

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		casesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cases_total",
			Help:      "Count of finished test cases",
		}, []string{
			"installer",
			"target",
			"outcome",
		}),
		caseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "case_duration_seconds",
			Help:      "Wall time from container start to exit",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300},
		}, []string{
			"installer",
			"target",
		}),
		flagsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "case_flags_total",
			Help:      "Count of cases reporting a classification flag",
		}, []string{
			"installer",
			"flag",
		}),
		launchFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "launch_failures_total",
			Help:      "Count of cases whose container never ran",
		}, []string{
			"installer",
		}),
	}
}

// Observe records one finished case. Its signature fits executor.WithReportHook.
func (r *Recorder) Observe(report execution.RunReport) {
	installer := strings.ToLower(string(report.Case.Installer))
	result := report.Result

	r.casesTotal.WithLabelValues(installer, report.Case.Target, outcomeLabel(result)).Inc()

	if !report.Launched {
		r.launchFailure.WithLabelValues(installer).Inc()
		return
	}
	r.caseDuration.WithLabelValues(installer, report.Case.Target).Observe(report.Duration.Seconds())

	if result.BuildRequired {
		r.flagsTotal.WithLabelValues(installer, "build-required").Inc()
	}
	if result.BinaryWheel {
		r.flagsTotal.WithLabelValues(installer, "binary-wheel").Inc()
	}
	if result.SlowInstall {
		r.flagsTotal.WithLabelValues(installer, "slow-install").Inc()
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func outcomeLabel(result execution.Result) string {
	switch {
	case result.TimedOut:
		return "timeout"
	case result.Passed:
		return "passed"
	default:
		return "failed"
	}
}
