package report

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var (
	reBearer    = regexp.MustCompile(`(?i)\b(bearer\s+)([a-z0-9\-\._~\+\/]+=*)`)
	// Only assignments (key=value) and JSON members ("key": "value") count;
	// prose such as "Invalid token: expired" is left alone.
	reApiKeyKV  = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|token|secret|authorization)(\s*=\s*|"\s*:\s*")([^\s,;"]+)`)
	reLongToken = regexp.MustCompile(`\b[a-zA-Z0-9_\-]{32,}\b`)

	customMu  sync.RWMutex
	customRes []*regexp.Regexp
)

// SetRedactionPatterns installs extra redaction regexes from config.
// Invalid patterns are skipped and returned so the caller can warn.
func SetRedactionPatterns(patterns []string) (invalid []string) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		compiled = append(compiled, re)
	}
	customMu.Lock()
	customRes = compiled
	customMu.Unlock()
	return invalid
}

// SanitizeOutcome redacts the free-text parts of an outcome before it is
// shown or written to a report.
func SanitizeOutcome(o ScanOutcome) ScanOutcome {
	o.Error = SanitizeText(o.Error)
	if len(o.Raw) > 0 {
		redacted := []byte(SanitizeText(string(o.Raw)))
		if !json.Valid(redacted) {
			redacted = nil
		}
		o.Raw = redacted
	}
	return o
}

func SanitizeText(s string) string {
	out := s
	out = reBearer.ReplaceAllString(out, "${1}<redacted>")
	out = reApiKeyKV.ReplaceAllString(out, "${1}${2}<redacted>")
	out = reLongToken.ReplaceAllStringFunc(out, func(tok string) string {
		return tok[:4] + "...<redacted>..." + tok[len(tok)-4:]
	})
	customMu.RLock()
	res := customRes
	customMu.RUnlock()
	for _, re := range res {
		out = re.ReplaceAllString(out, "<redacted>")
	}
	return out
}

func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SanitizeText(raw)
	}
	if u.User != nil {
		u.User = url.User("<redacted>")
	}

	q := u.Query()
	for k := range q {
		kl := strings.ToLower(k)
		if strings.Contains(kl, "token") ||
			strings.Contains(kl, "key") ||
			strings.Contains(kl, "secret") ||
			strings.Contains(kl, "auth") ||
			strings.Contains(kl, "session") ||
			strings.Contains(kl, "pass") {
			q.Set(k, "<redacted>")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
