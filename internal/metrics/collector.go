package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Speech operation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector records HTTP, speech and chat metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	speechOperationsTotal *prometheus.CounterVec
	speechDuration        *prometheus.HistogramVec
	speechAudioBytes      *prometheus.HistogramVec

	chatRequestsTotal *prometheus.CounterVec
	chatDuration      prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a collector. namespace prefixes every metric name.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.speechOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_operations_total",
			Help:      "Speech recognition and synthesis calls by outcome",
		},
		[]string{"operation", "outcome", "reason"},
	)

	c.speechDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_operation_duration_seconds",
			Help:      "Speech vendor call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	c.speechAudioBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_audio_bytes",
			Help:      "Size of uploaded and synthesized audio in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"operation"},
	)

	c.chatRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by answer source",
		},
		[]string{"source"},
	)

	c.chatDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_thinking_seconds",
			Help:      "Time the language model took to answer",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
		},
	)

	return c
}

// RecordHTTPRequest records one served HTTP request
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSpeech records a recognition ("asr") or synthesis ("tts") call.
// reason is empty on success.
func (c *Collector) RecordSpeech(operation, reason string, duration time.Duration, audioBytes int) {
	outcome := OutcomeSuccess
	if reason != "" {
		outcome = OutcomeFailure
	}
	c.speechOperationsTotal.WithLabelValues(operation, outcome, reason).Inc()
	c.speechDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if audioBytes > 0 {
		c.speechAudioBytes.WithLabelValues(operation).Observe(float64(audioBytes))
	}
}

// RecordChat records a chat answer by source
func (c *Collector) RecordChat(source string, thinkingSeconds float64) {
	c.chatRequestsTotal.WithLabelValues(source).Inc()
	c.chatDuration.Observe(thinkingSeconds)
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(c.logger),
	})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
