package engine

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OriginBoundaryTransport blocks requests (including redirects) that leave
// the configured backend origin, so uploaded sources never go elsewhere.
type OriginBoundaryTransport struct {
	Base    http.RoundTripper
	Allowed *url.URL
}

func (t *OriginBoundaryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := strings.ToLower(req.URL.Host)
	if host == "" {
		closeRequestBody(req)
		return nil, fmt.Errorf("blocked request: empty host")
	}
	if t.Allowed != nil {
		allowedHost := strings.ToLower(t.Allowed.Host)
		if host != allowedHost || !strings.EqualFold(req.URL.Scheme, t.Allowed.Scheme) {
			closeRequestBody(req)
			return nil, fmt.Errorf("blocked request outside backend origin: %s://%s (allowed: %s://%s)", req.URL.Scheme, host, t.Allowed.Scheme, allowedHost)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// closeRequestBody honours the RoundTripper contract on early rejection;
// streamed upload bodies would otherwise block their writer forever.
func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
