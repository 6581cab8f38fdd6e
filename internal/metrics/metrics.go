// Package metrics provides Prometheus metrics for the cardfs engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_mutations_total",
			Help: "Total number of tree mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	treeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardfs_tree_nodes",
			Help: "Number of nodes in the current tree, root included",
		},
	)

	// Sync metrics
	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_remote_pushes_total",
			Help: "Total number of remote pushes by result",
		},
		[]string{"result"},
	)

	pushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardfs_remote_push_duration_seconds",
			Help:    "Remote push duration in seconds, fallback create included",
			Buckets: prometheus.DefBuckets,
		},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_remote_snapshots_total",
			Help: "Total number of remote snapshots received by outcome",
		},
		[]string{"outcome"},
	)

	echoesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardfs_echo_suppressed_total",
			Help: "Pushes skipped because the tree matched the last remote snapshot",
		},
	)

	subscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardfs_subscriptions_active",
			Help: "Number of open remote subscriptions",
		},
	)

	subscriptionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardfs_subscription_retries_total",
			Help: "Total number of resubscribe attempts after a failure or drop",
		},
	)

	// Local cache metrics
	cacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_cache_writes_total",
			Help: "Total number of local cache writes",
		},
		[]string{"status"},
	)

	// Asset metrics
	assetUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_asset_uploads_total",
			Help: "Total number of asset uploads",
		},
		[]string{"status"},
	)

	assetUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardfs_asset_upload_duration_seconds",
			Help:    "Asset upload duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordMutation records one engine operation. applied is false when the
// operation was rejected or changed nothing.
func RecordMutation(op string, applied bool) {
	result := "applied"
	if !applied {
		result = "rejected"
	}
	mutationsTotal.WithLabelValues(op, result).Inc()
}

// SetTreeNodes sets the current tree size.
func SetTreeNodes(count int) {
	treeNodes.Set(float64(count))
}

// RecordPush records a remote push. result is one of "replaced",
// "created" or "error".
func RecordPush(result string, duration time.Duration) {
	pushesTotal.WithLabelValues(result).Inc()
	pushDuration.Observe(duration.Seconds())
}

// RecordSnapshot records a remote snapshot. outcome is one of "applied",
// "initialized" or "stale".
func RecordSnapshot(outcome string) {
	snapshotsTotal.WithLabelValues(outcome).Inc()
}

// RecordEchoSuppressed records a push skipped by echo suppression.
func RecordEchoSuppressed() {
	echoesSuppressed.Inc()
}

// AddSubscriptions adjusts the open subscription gauge.
func AddSubscriptions(delta int) {
	subscriptionsActive.Add(float64(delta))
}

// RecordSubscriptionRetry records a resubscribe attempt.
func RecordSubscriptionRetry() {
	subscriptionRetries.Inc()
}

// RecordCacheWrite records a local cache write.
func RecordCacheWrite(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	cacheWritesTotal.WithLabelValues(status).Inc()
}

// RecordAssetUpload records an asset upload.
func RecordAssetUpload(duration time.Duration, success bool) {
	assetUploadDuration.Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	assetUploadsTotal.WithLabelValues(status).Inc()
}
