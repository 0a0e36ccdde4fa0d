package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tracekit/tracekit/pkg/tracekit/event"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 5 * time.Second

	maxErrorBodySize = 4096
)

// HTTPSender delivers event batches to the collector endpoint.
//
// Reliable sends issue one POST carrying the whole batch and apply the
// configured per-attempt timeout; an aborted attempt is a failure and any
// late response is ignored. Beacon-mode sends use the injected BeaconFunc,
// falling back to a reliable POST when no primitive is available.
type HTTPSender struct {
	endpoint string
	appID    string
	headers  map[string]string
	client   *http.Client
	beacon   BeaconFunc
	retry    RetryConfig
	logger   *slog.Logger
}

// HTTPSenderConfig configures an HTTPSender.
type HTTPSenderConfig struct {
	// Endpoint is the collector URL events are POSTed to.
	Endpoint string

	// AppID is stamped into every wire record.
	AppID string

	// Headers are extra request headers applied to reliable sends.
	Headers map[string]string

	// Timeout bounds one delivery attempt.
	// Default: DefaultTimeout.
	Timeout time.Duration

	// Client optionally overrides the HTTP client.
	Client *http.Client

	// Beacon is the fire-and-forget primitive for ModeBeacon.
	// When nil, beacon sends degrade to a reliable POST.
	Beacon BeaconFunc

	// Retry optionally retries failed attempts within one Send.
	// Default: NoRetry (single attempt).
	Retry RetryConfig

	// Logger receives per-failure diagnostics. Nil disables them.
	Logger *slog.Logger
}

// NewHTTPSender creates a sender for the given collector endpoint.
func NewHTTPSender(cfg HTTPSenderConfig) (*HTTPSender, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("delivery endpoint required")
	}

	// The sender works on its own client so setting the timeout cannot
	// leak into a client the caller shares elsewhere.
	client := &http.Client{}
	if cfg.Client != nil {
		shallow := *cfg.Client
		client = &shallow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client.Timeout = timeout

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = NoRetry
	}

	return &HTTPSender{
		endpoint: endpoint,
		appID:    cfg.AppID,
		headers:  cfg.Headers,
		client:   client,
		beacon:   cfg.Beacon,
		retry:    retry,
		logger:   cfg.Logger,
	}, nil
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, events []event.Event, mode Mode) bool {
	if len(events) == 0 {
		return true
	}

	body := event.Payload(events, s.appID)

	if mode == ModeBeacon {
		if s.beacon != nil {
			return s.beacon(s.endpoint, body)
		}
		// No beacon primitive available: best-effort degrade to a
		// reliable POST. The result reflects the fallback attempt.
		return s.post(ctx, body)
	}

	ok := s.post(ctx, body)
	for attempt := 1; !ok && attempt < s.retry.MaxAttempts; attempt++ {
		if !s.retry.sleep(ctx, attempt) {
			break
		}
		ok = s.post(ctx, body)
	}
	return ok
}

// post issues one reliable POST attempt. 2xx is success; a network error,
// timeout, or any other status is failure.
func (s *HTTPSender) post(ctx context.Context, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.logFailure("build request", 0, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logFailure("send request", 0, err)
		return false
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the response payload itself
	// carries nothing the pipeline needs.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logFailure("collector rejected batch", resp.StatusCode, nil)
		return false
	}
	return true
}

func (s *HTTPSender) logFailure(msg string, status int, err error) {
	if s.logger == nil {
		return
	}
	attrs := []any{slog.String("endpoint", s.endpoint)}
	if status != 0 {
		attrs = append(attrs, slog.Int("status", status))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.Debug("delivery failed: "+msg, attrs...)
}
