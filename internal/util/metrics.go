package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SegmentationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_runs_total",
		Help: "Total number of completed segmentation runs",
	}, []string{"strategy"})

	SegmentationRunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_runs_failed_total",
		Help: "Total number of failed segmentation runs",
	}, []string{"kind"})

	SegmentationRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segmentation_run_duration_seconds",
		Help:    "Duration of a full segmentation run",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})

	TransactionsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transactions_loaded",
		Help: "Transactions read by the latest run",
	})

	TransactionsExcluded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transactions_excluded",
		Help: "Returns, zero-priced and anonymous lines excluded by the latest run",
	})

	CustomersBySegment = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "customers_by_segment",
		Help: "Customers per segment in the latest snapshot",
	}, []string{"segment"})

	ChurnRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "customer_churn_rate",
		Help: "Share of churned customers in the latest snapshot",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segment_cache_misses_total",
		Help: "Customer lookups that fell back to the database",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
