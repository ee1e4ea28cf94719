package observe

import (
	"context"
	"sync"
)

type captureKey struct{}

// TimelineCapture accumulates a Timeline across a single SmartRequest
// for tests and debugging. Safe for concurrent writes from racing
// fetchers.
type TimelineCapture struct {
	mu sync.Mutex
	tl *Timeline
}

// RecordTimeline returns a derived context carrying a fresh
// TimelineCapture, and the capture itself. Call capture.Timeline()
// after the call completes to inspect what happened.
func RecordTimeline(ctx context.Context) (context.Context, *TimelineCapture) {
	c := &TimelineCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// TimelineCaptureFromContext returns the capture stored by
// RecordTimeline, if any. A nil ctx or one without a capture returns
// ok=false.
func TimelineCaptureFromContext(ctx context.Context) (*TimelineCapture, bool) {
	if ctx == nil {
		return nil, false
	}
	if v, _ := ctx.Value(suppressKey{}).(bool); v {
		return nil, false
	}
	c, ok := ctx.Value(captureKey{}).(*TimelineCapture)
	return c, ok
}

type suppressKey struct{}

// WithoutTimelineCapture returns a context in which
// TimelineCaptureFromContext reports ok=false, even though an
// ancestor context carries a capture. The original context (and its
// capture) are untouched.
func WithoutTimelineCapture(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

// StoreTimelineCapture records tl into c. Safe for concurrent use.
func StoreTimelineCapture(c *TimelineCapture, tl *Timeline) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tl = tl
	c.mu.Unlock()
}

// Timeline returns the most recently stored Timeline, or nil if none
// has been stored yet.
func (c *TimelineCapture) Timeline() *Timeline {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tl
}
