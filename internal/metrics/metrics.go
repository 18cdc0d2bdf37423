// Package metrics holds the Prometheus collectors exposed at /metrics,
// instrumenting the ingestion/writer/sweeper pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RecordsAccepted counts lines that decoded successfully and were
	// admitted to the writer channel.
	RecordsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_records_accepted_total",
		Help: "Total number of log records accepted for persistence.",
	})

	// RecordsDropped counts lines dropped at ingest: malformed JSON,
	// missing hash, or rejected by the admission cache.
	RecordsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logserver_records_dropped_total",
		Help: "Total number of log lines dropped at ingest, by reason.",
	}, []string{"reason"})

	// MessagesTruncated counts records whose message field exceeded
	// max_log_length and was truncated.
	MessagesTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_messages_truncated_total",
		Help: "Total number of log messages truncated to the configured max length.",
	})

	// AdmittedHashes reports the admission cache's current cardinality.
	AdmittedHashes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logserver_admitted_hashes",
		Help: "Current number of stream hashes admitted by the ingestion cache.",
	})

	// BatchFlushDuration tracks how long each writer batch commit takes.
	BatchFlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "logserver_batch_flush_duration_seconds",
		Help:    "Duration of writer batch commits to the store.",
		Buckets: prometheus.DefBuckets,
	})

	// BatchSize tracks how many records land in each committed batch.
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "logserver_batch_size",
		Help:    "Number of records committed per writer batch.",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
	})
)

// Register adds all collectors to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RecordsAccepted,
		RecordsDropped,
		MessagesTruncated,
		AdmittedHashes,
		BatchFlushDuration,
		BatchSize,
	)
}
