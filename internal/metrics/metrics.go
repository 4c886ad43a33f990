package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	reg         *prometheus.Registry
	handler     http.Handler
	inflight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec

	publishTotal     *prometheus.CounterVec
	publishUnchanged prometheus.Counter
	publishDur       prometheus.Histogram
}

// New returns a fresh registry + standard collectors + HTTP and publish metrics.
// Route labels use the chi pattern, never the raw path.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_total",
			Help: "Total publishes by outcome (created, updated, failed)",
		}, []string{"outcome"}),
		publishUnchanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "publish_unchanged_total",
			Help: "Successful publishes whose content already matched the remote file",
		}),
		publishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "publish_duration_seconds",
			Help:    "Time spent on the version lookup and write of one publish",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.errorsTotal,
		m.publishTotal,
		m.publishUnchanged,
		m.publishDur,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// ObservePublish records one finished publish.
func (m *ServerMetrics) ObservePublish(outcome string, unchanged bool, d time.Duration) {
	m.publishTotal.WithLabelValues(outcome).Inc()
	if unchanged {
		m.publishUnchanged.Inc()
	}
	m.publishDur.Observe(d.Seconds())
}
