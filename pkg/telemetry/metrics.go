package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luminix/luminix/pkg/engine"
)

// Metrics provides Prometheus metrics for the execution engine. It
// implements engine.MetricsObserver; with metrics disabled every method
// is a no-op.
type Metrics struct {
	config MetricsConfig

	// Operation metrics
	operationsStarted   *prometheus.CounterVec
	operationsCompleted *prometheus.CounterVec
	operationsRejected  *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// Environment metrics
	nativeAvailable   prometheus.Gauge
	currentGeneration prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operationsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_started_total",
				Help:      "Total number of operations started",
			},
			[]string{"kind"},
		),
		operationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_completed_total",
				Help:      "Total number of operations completed",
			},
			[]string{"kind", "status", "executor"},
		),
		operationsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_rejected_total",
				Help:      "Total number of operations rejected before execution",
			},
			[]string{"reason"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operation execution in seconds",
				Buckets:   buckets,
			},
			[]string{"kind", "executor"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of operation failures by error kind",
			},
			[]string{"kind"},
		),

		nativeAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "native_available",
				Help:      "Whether the native system machinery was discovered (1=yes, 0=no)",
			},
		),
		currentGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_generation",
				Help:      "The system generation currently active",
			},
		),
	}

	registry.MustRegister(
		m.operationsStarted,
		m.operationsCompleted,
		m.operationsRejected,
		m.operationDuration,
		m.errorsByKind,
		m.nativeAvailable,
		m.currentGeneration,
	)

	return m, nil
}

// OperationStarted implements engine.MetricsObserver.
func (m *Metrics) OperationStarted(kind engine.OperationKind) {
	if m.operationsStarted == nil {
		return
	}
	m.operationsStarted.WithLabelValues(string(kind)).Inc()
}

// OperationCompleted implements engine.MetricsObserver.
func (m *Metrics) OperationCompleted(result *engine.ExecutionResult) {
	if m.operationsCompleted == nil {
		return
	}
	status := "success"
	if !result.Success {
		status = "failure"
		if result.Error != nil {
			m.errorsByKind.WithLabelValues(string(result.Error.Kind)).Inc()
		}
	}
	m.operationsCompleted.WithLabelValues(string(result.Kind), status, result.Executor).Inc()
	m.operationDuration.WithLabelValues(string(result.Kind), result.Executor).Observe(result.Duration.Seconds())

	for _, g := range result.Generations {
		if g.Current {
			m.SetCurrentGeneration(g.ID)
		}
	}
}

// OperationRejected implements engine.MetricsObserver.
func (m *Metrics) OperationRejected(kind engine.ErrorKind) {
	if m.operationsRejected == nil {
		return
	}
	m.operationsRejected.WithLabelValues(string(kind)).Inc()
}

// SetNativeAvailable records whether the native machinery was discovered.
func (m *Metrics) SetNativeAvailable(available bool) {
	if m.nativeAvailable == nil {
		return
	}
	value := 0.0
	if available {
		value = 1.0
	}
	m.nativeAvailable.Set(value)
}

// SetCurrentGeneration records the active system generation.
func (m *Metrics) SetCurrentGeneration(id int) {
	if m.currentGeneration == nil {
		return
	}
	m.currentGeneration.Set(float64(id))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
