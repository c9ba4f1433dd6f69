// Package telemetry holds the process-wide collectors and tracer used by the
// stores and the loader.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "docpager"

var (
	// StoreQueryDuration observes store round trips by store and operation.
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       namespace,
		Name:                            "store_query_duration_ms",
		Help:                            "The duration (in ms) of document store queries labeled by store and operation.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: 0,
	}, []string{"store", "operation"})

	// LoaderBatchSize observes the number of keys dispatched per loader batch.
	LoaderBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "loader_batch_size",
		Help:      "The number of keys coalesced into one loader batch.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"loader"})

	// LoaderGroupCount observes the number of grouped store queries per batch.
	LoaderGroupCount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "loader_group_count",
		Help:      "The number of grouped store queries issued for one loader batch.",
		Buckets:   []float64{1, 2, 3, 5, 10},
	}, []string{"loader"})

	// LoaderMisses counts non-strict loader misses.
	LoaderMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loader_misses_total",
		Help:      "The number of loader keys that resolved to no document.",
	}, []string{"loader"})
)

// Tracer returns the tracer for the named component.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/hadi77ir/go-docpager/" + name)
}
