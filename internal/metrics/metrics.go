// Package metrics exposes Prometheus metrics for the VaultDrive API.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultdrive_uploads_total",
			Help: "Chunked uploads by terminal status",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultdrive_upload_bytes_total",
			Help: "Total bytes committed through completed uploads",
		},
	)

	quotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultdrive_quota_rejections_total",
			Help: "Upload admissions rejected for insufficient storage",
		},
	)

	contentRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultdrive_content_rejections_total",
			Help: "Completed uploads rejected by content validation",
		},
	)
)

// RecordUpload counts one upload reaching a terminal status
// (completed, aborted, expired).
func RecordUpload(status string) {
	uploadsTotal.WithLabelValues(status).Inc()
}

// AddUploadBytes accumulates committed upload bytes.
func AddUploadBytes(n int64) {
	if n > 0 {
		uploadBytesTotal.Add(float64(n))
	}
}

// RecordQuotaRejected counts a failed admission check.
func RecordQuotaRejected() {
	quotaRejectionsTotal.Inc()
}

// RecordContentRejected counts a content-validation rejection.
func RecordContentRejected() {
	contentRejectionsTotal.Inc()
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
