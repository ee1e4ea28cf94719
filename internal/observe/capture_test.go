package observe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

func TestRecordTimelineRoundTrips(t *testing.T) {
	ctx, capture := observe.RecordTimeline(context.Background())

	retrieved, ok := observe.TimelineCaptureFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, capture, retrieved)

	tl := &observe.Timeline{Key: policykey.ForUpstream("test")}
	observe.StoreTimelineCapture(capture, tl)
	assert.Same(t, tl, capture.Timeline())
}

func TestTimelineCaptureFromContextMissing(t *testing.T) {
	_, ok := observe.TimelineCaptureFromContext(context.Background())
	assert.False(t, ok)
}

func TestWithoutTimelineCaptureSuppresses(t *testing.T) {
	ctx, _ := observe.RecordTimeline(context.Background())
	suppressed := observe.WithoutTimelineCapture(ctx)

	_, ok := observe.TimelineCaptureFromContext(suppressed)
	assert.False(t, ok, "WithoutTimelineCapture must hide an ancestor's capture")

	_, okOriginal := observe.TimelineCaptureFromContext(ctx)
	assert.True(t, okOriginal, "the original context's capture must be unaffected")
}

func TestNilCaptureTimelineIsNil(t *testing.T) {
	var c *observe.TimelineCapture
	assert.Nil(t, c.Timeline())
}
