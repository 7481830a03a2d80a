package main

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ocrkv"

// Metrics counts what a conversion did. Each run owns its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SamplesFound    prometheus.Counter
	RecordsAccepted prometheus.Counter
	RecordsSkipped  *prometheus.CounterVec
	Flushes         prometheus.Counter
	FlushDuration   prometheus.Histogram
}

func NewMetrics(split string) *Metrics {
	labels := prometheus.Labels{"split": split}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SamplesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "samples_found_total",
			Help:        "Samples listed by manifests whose image exists.",
			ConstLabels: labels,
		}),
		RecordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "records_accepted_total",
			Help:        "Records staged for commit.",
			ConstLabels: labels,
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "records_skipped_total",
			Help:        "Samples dropped before staging.",
			ConstLabels: labels,
		}, []string{"reason"}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "flushes_total",
			Help:        "Committed write transactions.",
			ConstLabels: labels,
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "flush_duration_seconds",
			Help:        "Time spent committing a write transaction.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.SamplesFound, m.RecordsAccepted, m.RecordsSkipped, m.Flushes, m.FlushDuration)
	return m
}

// Gatherer exposes the run's registry.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// WriteFile writes the metrics in Prometheus text format, suitable for a
// node_exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics to %s", path)
}
