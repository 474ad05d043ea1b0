package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrievalMetrics collects everything worth watching about the engine:
// the upload/indexing pipeline, query latency and result counts, and how
// many sessions currently hold in-memory indexes.
type RetrievalMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	indexFilesTotal  *prometheus.CounterVec
	indexDuration    *prometheus.HistogramVec
	indexChunksTotal prometheus.Counter
	queueLag         prometheus.Histogram

	queryTotal     *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	querySnippets  prometheus.Histogram
	activeSessions prometheus.Gauge
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "pdfchat",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)

	indexFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "files_total",
			Help:      "Total indexed files by outcome.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "file_duration_seconds",
			Help:      "Per-file indexing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexChunksTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "pdfchat",
			Subsystem:   "index",
			Name:        "chunks_total",
			Help:        "Total chunks added to session indexes.",
			ConstLabels: serviceLabel,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "pdfchat",
			Subsystem:   "index",
			Name:        "queue_lag_seconds",
			Help:        "Delay between upload and indexing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: serviceLabel,
		},
	)

	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfchat",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total retrieval queries by outcome.",
		},
		[]string{"service", "status"},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "pdfchat",
			Subsystem:   "retrieval",
			Name:        "query_duration_seconds",
			Help:        "Retrieval query duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
	)
	querySnippets := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "pdfchat",
			Subsystem:   "retrieval",
			Name:        "query_snippets",
			Help:        "Distribution of fused snippets returned per query.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: serviceLabel,
		},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "pdfchat",
			Subsystem:   "retrieval",
			Name:        "active_sessions",
			Help:        "Sessions currently holding in-memory indexes.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		indexFilesTotal,
		indexDuration,
		indexChunksTotal,
		queueLag,
		queryTotal,
		queryDuration,
		querySnippets,
		activeSessions,
	)

	return &RetrievalMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		indexFilesTotal:  indexFilesTotal,
		indexDuration:    indexDuration,
		indexChunksTotal: indexChunksTotal,
		queueLag:         queueLag,
		queryTotal:       queryTotal,
		queryDuration:    queryDuration,
		querySnippets:    querySnippets,
		activeSessions:   activeSessions,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *RetrievalMetrics) ObserveIndexedFile(service string, duration time.Duration, chunks int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.indexFilesTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil && chunks > 0 {
		m.indexChunksTotal.Add(float64(chunks))
	}
}

func (m *RetrievalMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *RetrievalMetrics) ObserveQuery(service string, duration time.Duration, snippets int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.queryTotal.WithLabelValues(service, status).Inc()
	if err != nil {
		return
	}
	m.queryDuration.Observe(duration.Seconds())
	m.querySnippets.Observe(float64(snippets))
}

func (m *RetrievalMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Keep label cardinality bounded: collapse per-session and per-file path
// segments.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/sessions/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/sessions/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		return "/v1/sessions/{session_id}"
	case len(parts) == 2:
		return "/v1/sessions/{session_id}/" + parts[1]
	case len(parts) >= 3 && parts[1] == "files":
		return "/v1/sessions/{session_id}/files/{file_id}"
	default:
		return "/v1/sessions/{session_id}"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
