// Package metrics provides Prometheus metrics for the transcription dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasttranscribe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fasttranscribe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	jobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasttranscribe_job_transitions_total",
			Help: "Job status transitions",
		},
		[]string{"status"},
	)

	jobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasttranscribe_jobs_queued",
			Help: "Jobs currently in the queue, terminal ones included",
		},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fasttranscribe_upload_bytes_total",
			Help: "Total audio bytes accepted by the upload intake",
		},
	)

	syncSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasttranscribe_sync_sessions_total",
			Help: "Drive sync sessions by final status",
		},
		[]string{"status"},
	)

	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasttranscribe_tree_nodes",
			Help: "Number of folders and files in the loaded tree",
		},
	)

	treeReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fasttranscribe_tree_reload_duration_seconds",
			Help:    "Time to reload the folder tree from its store",
			Buckets: prometheus.DefBuckets,
		},
	)

	previewCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasttranscribe_preview_cache_total",
			Help: "Transcript preview cache lookups",
		},
		[]string{"result"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasttranscribe_sessions_active",
			Help: "Dashboard sessions currently open",
		},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasttranscribe_sse_connections_active",
			Help: "Number of active event stream connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJobTransition counts a job entering status.
func RecordJobTransition(status string) {
	jobTransitionsTotal.WithLabelValues(status).Inc()
}

// SetJobsQueued sets the queue length.
func SetJobsQueued(n int) {
	jobsQueued.Set(float64(n))
}

// RecordUpload adds accepted upload bytes.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// RecordSyncSession counts a sync session reaching status.
func RecordSyncSession(status string) {
	syncSessionsTotal.WithLabelValues(status).Inc()
}

// SetTreeSize sets the current tree size.
func SetTreeSize(n int) {
	treeSize.Set(float64(n))
}

// RecordTreeReload records reload duration.
func RecordTreeReload(d time.Duration) {
	treeReloadDuration.Observe(d.Seconds())
}

// RecordPreviewCache records a cache hit or miss.
func RecordPreviewCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	previewCacheTotal.WithLabelValues(result).Inc()
}

// AddSessions moves the open sessions gauge by delta.
func AddSessions(delta int) {
	sessionsActive.Add(float64(delta))
}

// SetSSEConnectionsActive sets the number of event stream subscribers.
func SetSSEConnectionsActive(n int) {
	sseConnectionsActive.Set(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request metrics labelled by route template. It must be
// installed with Router.Use so the matched route is known.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
