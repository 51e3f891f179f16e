package engine

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/publicsuffix"
)

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	// Origin restricts outgoing requests to the backend's scheme and host.
	Origin *url.URL
	// Registerer receives request metrics; nil disables registration.
	Registerer prometheus.Registerer
	TLSConfig  *tls.Config
}

func NewHTTPClient(timeout time.Duration, tlsConfig *tls.Config) *http.Client {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	// The backend may keep a session cookie between upload and scans.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSClientConfig:       tlsConfig,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// NewBackendClient layers the origin guard, rate limiting and metrics on
// top of NewHTTPClient. The returned MetricsTransport is never nil.
func NewBackendClient(opts Options) (*http.Client, *MetricsTransport) {
	client := NewHTTPClient(opts.Timeout, opts.TLSConfig)
	if opts.Origin != nil {
		client.Transport = &OriginBoundaryTransport{
			Base:    client.Transport,
			Allowed: opts.Origin,
		}
	}
	client.Transport = NewRateLimitedTransport(client.Transport, opts.RequestsPerSecond)
	metrics := NewMetricsTransport(client.Transport, opts.Registerer)
	client.Transport = metrics
	return client, metrics
}
