package engine

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsTransport records request count and cumulative duration, and
// mirrors them into prometheus collectors when a registerer is given.
type MetricsTransport struct {
	Base      http.RoundTripper
	requests  int64
	durationN int64

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewMetricsTransport(base http.RoundTripper, reg prometheus.Registerer) *MetricsTransport {
	t := &MetricsTransport{
		Base: base,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarttest_backend_requests_total",
			Help: "Requests sent to the scan backend by path and status code",
		}, []string{"path", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smarttest_backend_request_duration_seconds",
			Help:    "Scan backend request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
		}, []string{"path"}),
	}
	if reg != nil {
		t.requestTotal = registerOrExisting(reg, t.requestTotal)
		t.requestDuration = registerOrExisting(reg, t.requestDuration)
	}
	return t
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (t *MetricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)
	atomic.AddInt64(&t.requests, 1)
	atomic.AddInt64(&t.durationN, elapsed.Nanoseconds())

	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	t.requestTotal.WithLabelValues(req.URL.Path, code).Inc()
	t.requestDuration.WithLabelValues(req.URL.Path).Observe(elapsed.Seconds())
	return resp, err
}

func (t *MetricsTransport) Snapshot() (int64, time.Duration) {
	return atomic.LoadInt64(&t.requests), time.Duration(atomic.LoadInt64(&t.durationN))
}

// WriteMetricsFile dumps g in the node_exporter textfile format.
func WriteMetricsFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
