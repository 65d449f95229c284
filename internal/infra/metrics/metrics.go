// File: internal/infra/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	downloadsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "downloads_started_total",
			Help: "Count of download jobs accepted for execution.",
		},
	)

	downloadsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloads_finished_total",
			Help: "Count of download jobs by terminal status.",
		},
		[]string{"status"},
	)

	downloadRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "download_retries_total",
			Help: "Count of retry attempts triggered by transient failures.",
		},
	)

	downloadsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "downloads_active",
			Help: "Number of download jobs currently executing.",
		},
	)

	downloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "download_duration_seconds",
			Help:    "Wall-clock duration of download jobs from launch to settlement.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	filesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "files_downloaded_total",
			Help: "Sum of files reported downloaded by completed jobs.",
		},
	)
)

// Register installs all collectors on the default registry. Idempotent.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			downloadsStarted,
			downloadsFinished,
			downloadRetries,
			downloadsActive,
			downloadDuration,
			filesDownloaded,
		)
	})
}

func IncDownloadStarted() { downloadsStarted.Inc() }
func IncDownloadRetry()   { downloadRetries.Inc() }
func IncDownloadsActive() { downloadsActive.Inc() }
func DecDownloadsActive() { downloadsActive.Dec() }

func AddFilesDownloaded(n int) {
	if n > 0 {
		filesDownloaded.Add(float64(n))
	}
}

func ObserveDownloadFinished(status string, seconds float64) {
	downloadsFinished.WithLabelValues(status).Inc()
	downloadDuration.WithLabelValues(status).Observe(seconds)
}
