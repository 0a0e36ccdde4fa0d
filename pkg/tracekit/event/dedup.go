package event

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultDedupWindow is how long a repeated page view for the same
// normalized URL is suppressed. Guards against duplicate initial-load
// signals firing from multiple origin hooks in the same tick.
const DefaultDedupWindow = 100 * time.Millisecond

// PageViewFilter suppresses duplicate page-view events.
//
// It tracks only the single most recent page view, not a full history:
// a new page view for the same normalized URL arriving within the window
// is rejected before an event is ever created.
type PageViewFilter struct {
	mu      sync.Mutex
	lastURL string
	lastAt  time.Time
	window  time.Duration
	now     func() time.Time
}

// NewPageViewFilter creates a filter with the given suppression window.
// A non-positive window selects DefaultDedupWindow.
func NewPageViewFilter(window time.Duration) *PageViewFilter {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &PageViewFilter{
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a page view for rawURL should produce an event,
// and records it as the most recent page view when allowed.
func (f *PageViewFilter) Allow(rawURL string) bool {
	normalized := NormalizeURL(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if normalized == f.lastURL && now.Sub(f.lastAt) < f.window {
		return false
	}

	f.lastURL = normalized
	f.lastAt = now
	return true
}

// Reset clears the most-recent pointer.
func (f *PageViewFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = ""
	f.lastAt = time.Time{}
}

// NormalizeURL canonicalizes a URL for dedup comparison: scheme and host
// are lowercased, the fragment is dropped, and a trailing slash on the
// path is removed. Unparseable input is compared verbatim.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}
