package engine

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitedTransport spaces out backend requests.
type RateLimitedTransport struct {
	Transport http.RoundTripper
	Limiter   *rate.Limiter
}

// NewRateLimitedTransport returns base unchanged when rps is not positive.
func NewRateLimitedTransport(base http.RoundTripper, rps float64) http.RoundTripper {
	if rps <= 0 {
		return base
	}
	return &RateLimitedTransport{
		Transport: base,
		Limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			closeRequestBody(req)
			return nil, err
		}
	}
	if t.Transport == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.Transport.RoundTrip(req)
}
