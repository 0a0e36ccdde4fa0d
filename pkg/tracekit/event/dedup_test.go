package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock returns a manually advanced time source.
func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	now := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return now, advance
}

func TestPageViewFilter_SuppressesWithinWindow(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, advance := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://example.com/home"))

	advance(50 * time.Millisecond)
	assert.False(t, filter.Allow("https://example.com/home"), "duplicate within window")
}

func TestPageViewFilter_AllowsAfterWindow(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, advance := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://example.com/home"))

	advance(150 * time.Millisecond)
	assert.True(t, filter.Allow("https://example.com/home"), "window elapsed")
}

func TestPageViewFilter_DifferentURLAllowed(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, _ := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://example.com/home"))
	assert.True(t, filter.Allow("https://example.com/pricing"))
}

func TestPageViewFilter_NormalizedComparison(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, _ := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://Example.com/home/"))
	assert.False(t, filter.Allow("https://example.com/home#section"),
		"case, trailing slash, and fragment differences are the same page")
}

func TestPageViewFilter_OnlyTracksMostRecent(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, advance := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://example.com/a"))
	advance(10 * time.Millisecond)
	assert.True(t, filter.Allow("https://example.com/b"))
	advance(10 * time.Millisecond)
	// /a is no longer the most recent pointer, so it is allowed again
	// even though it was seen 20ms ago.
	assert.True(t, filter.Allow("https://example.com/a"))
}

func TestPageViewFilter_Reset(t *testing.T) {
	filter := NewPageViewFilter(100 * time.Millisecond)
	now, _ := fakeClock(time.UnixMilli(1700000000000))
	filter.now = now

	assert.True(t, filter.Allow("https://example.com/home"))
	filter.Reset()
	assert.True(t, filter.Allow("https://example.com/home"))
}

func TestPageViewFilter_DefaultWindow(t *testing.T) {
	filter := NewPageViewFilter(0)
	assert.Equal(t, DefaultDedupWindow, filter.window)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Path", "https://example.com/Path"},
		{"drops fragment", "https://example.com/a#top", "https://example.com/a"},
		{"trims trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"keeps query", "https://example.com/a?b=1", "https://example.com/a?b=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}
