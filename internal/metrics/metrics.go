// Package metrics holds the broker's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minikafka"

var (
	// ProduceRequestsTotal counts handled Produce requests, by outcome.
	ProduceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "produce_requests_total",
		Help:      "Total number of Produce requests handled, by outcome.",
	}, []string{"outcome"})

	// FetchRequestsTotal counts handled Fetch requests, by outcome.
	FetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_requests_total",
		Help:      "Total number of Fetch requests handled, by outcome.",
	}, []string{"outcome"})

	// RecordsAppendedTotal counts individual records appended, by partition.
	RecordsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_appended_total",
		Help:      "Total number of records appended, per topic-partition.",
	}, []string{"topic", "partition"})

	// RecordsFetchedTotal counts individual records returned from fetch calls.
	RecordsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_fetched_total",
		Help:      "Total number of records returned from Fetch requests, per topic-partition.",
	}, []string{"topic", "partition"})

	// AppendDurationSeconds observes the latency of PartitionLog.Append,
	// including the fsync barrier.
	AppendDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "append_duration_seconds",
		Help:      "Time spent appending and fsyncing a batch of records.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	// OpenPartitions is a gauge of partitions currently open in the registry.
	OpenPartitions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_partitions",
		Help:      "Number of (topic, partition) logs currently open.",
	})

	// ConnectionsActive is a gauge of currently open client connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Number of currently open client TCP connections.",
	})
)
