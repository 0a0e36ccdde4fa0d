package instrument_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracekit/tracekit/pkg/tracekit/instrument"
)

type call struct {
	method  string
	url     string
	status  int
	latency time.Duration
}

type recordingReporter struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingReporter) APIPerformance(method, url string, status int, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{method, url, status, latency})
}

func (r *recordingReporter) last(t *testing.T) call {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.calls)
	return r.calls[len(r.calls)-1]
}

func TestTransport_ReportsSuccessfulCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	reporter := &recordingReporter{}
	client := &http.Client{Transport: instrument.NewTransport(nil, reporter)}

	resp, err := client.Post(server.URL+"/v1/items", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	got := reporter.last(t)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, server.URL+"/v1/items", got.url)
	assert.Equal(t, http.StatusCreated, got.status)
	assert.GreaterOrEqual(t, got.latency, time.Duration(0))
}

func TestTransport_StripsQueryAndCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reporter := &recordingReporter{}
	client := &http.Client{Transport: instrument.NewTransport(nil, reporter)}

	resp, err := client.Get(server.URL + "/search?q=secret&token=abc123#frag")
	require.NoError(t, err)
	resp.Body.Close()

	got := reporter.last(t)
	assert.Equal(t, server.URL+"/search", got.url)
}

func TestTransport_ReportsTransportErrorAsStatusZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // guaranteed connection refusal

	reporter := &recordingReporter{}
	client := &http.Client{Transport: instrument.NewTransport(nil, reporter)}

	_, err := client.Get(server.URL + "/unreachable")
	require.Error(t, err)

	got := reporter.last(t)
	assert.Zero(t, got.status)
}

func TestTransport_NilReporterPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: instrument.NewTransport(nil, nil)}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
