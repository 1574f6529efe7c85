package controllers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	sourcemapControllerReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcemap_controller_reconcile_total",
			Help: "Number of reconciliations by controller.",
		},
		[]string{"controller"},
	)
	sourcemapControllerReconcileErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcemap_controller_reconcile_error_total",
			Help: "Number of reconciliation errors by controller.",
		},
		[]string{"controller"},
	)

	sourceResolverSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sourcemap_sourceresolver_skipped_total",
			Help: "Reconciles skipped because the manifest inputs were unchanged.",
		},
	)
	sourceResolverAssignments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sourcemap_sourceresolver_assignments",
			Help: "Number of package assignments produced by the last SourceResolver resolution.",
		},
	)
	sourceResolverUnresolved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sourcemap_sourceresolver_unresolved",
			Help: "Number of sub-dependencies no repository offers in the last SourceResolver resolution.",
		},
	)
	sourceResolverConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcemap_sourceresolver_conflicts_total",
			Help: "Total number of source ambiguities seen, by resolver mode.",
		},
		[]string{"mode"},
	)
	sourceResolverReportsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcemap_sourceresolver_reports_published_total",
			Help: "Reports handed to the event bus, by result.",
		},
		[]string{"result"},
	)

	sourceResolverResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sourcemap_sourceresolver_resolution_duration_seconds",
			Help:    "Time taken to resolve package sources, by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		sourcemapControllerReconcileTotal,
		sourcemapControllerReconcileErrorTotal,
		sourceResolverSkippedTotal,
		sourceResolverAssignments,
		sourceResolverUnresolved,
		sourceResolverConflictsTotal,
		sourceResolverReportsPublishedTotal,
		sourceResolverResolutionDuration,
	)
}

// ObserveResolutionSuccess records a successful resolution. Pass it to resolver.NewInstrumentedResolver.
func ObserveResolutionSuccess(d time.Duration) {
	sourceResolverResolutionDuration.WithLabelValues("success").Observe(d.Seconds())
}

// ObserveResolutionFailure records a failed resolution. Pass it to resolver.NewInstrumentedResolver.
func ObserveResolutionFailure(d time.Duration) {
	sourceResolverResolutionDuration.WithLabelValues("failure").Observe(d.Seconds())
}
