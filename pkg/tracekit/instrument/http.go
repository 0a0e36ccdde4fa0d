// Package instrument provides opt-in instrumentation adapters that feed
// application activity into a tracker. Nothing is intercepted implicitly;
// the host application installs each adapter explicitly.
package instrument

import (
	"net/http"
	"net/url"
	"time"
)

// Reporter receives one measurement per instrumented API call.
// *tracekit.Tracker satisfies it.
type Reporter interface {
	APIPerformance(method, url string, status int, latency time.Duration)
}

// Transport is an http.RoundTripper that reports the latency and status of
// every request passing through it. Install it on a client to instrument
// that client only:
//
//	client := &http.Client{Transport: instrument.NewTransport(nil, tracker)}
//
// A transport error reports status 0.
type Transport struct {
	base     http.RoundTripper
	reporter Reporter
}

// NewTransport wraps base with API-call reporting. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, reporter Reporter) *Transport {
	return &Transport{base: base, reporter: reporter}
}

// RoundTrip implements http.RoundTripper. Reporting never alters the
// request, the response, or the returned error.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	latency := time.Since(start)

	if t.reporter != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.reporter.APIPerformance(req.Method, sanitizeURL(req.URL), status, latency)
	}
	return resp, err
}

// sanitizeURL strips the query string, fragment, and userinfo so recorded
// URLs cannot leak tokens or credentials.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
	}
	return clean.String()
}
