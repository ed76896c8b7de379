package engine

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetrics exposes the engine's scheduler, retry, and queue
// collectors.
type PrometheusMetrics struct {
	QueueDepth         prometheus.Gauge
	ActiveNodes        prometheus.Gauge
	StepLatency        prometheus.Histogram
	StepCount          prometheus.Counter
	RetryCount         prometheus.Counter
	BackpressureEvents prometheus.Counter
}

// NewPrometheusMetrics constructs and registers the engine's collectors
// against reg.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "queue_depth",
			Help: "Current number of work items waiting in a run's frontier.",
		}),
		ActiveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "active_nodes",
			Help: "Number of node invocations currently dispatched.",
		}),
		StepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "engine", Name: "step_latency_ms",
			Help:    "Latency of a single node invocation attempt, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		StepCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "step_count_total",
			Help: "Total node invocation attempts across all runs.",
		}),
		RetryCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "retry_count_total",
			Help: "Total retries scheduled across all runs.",
		}),
		BackpressureEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "backpressure_events_total",
			Help: "Total times a run's frontier hit capacity and blocked Enqueue.",
		}),
	}
	reg.MustRegister(m.QueueDepth, m.ActiveNodes, m.StepLatency, m.StepCount, m.RetryCount, m.BackpressureEvents)
	return m
}
