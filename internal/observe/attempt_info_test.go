package observe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aponysus/hedgeproxy/internal/observe"
)

func TestAttemptFromContextRoundTrips(t *testing.T) {
	info := observe.AttemptInfo{Index: 1, IsHedge: true, KeyLabel: "smart.upstream"}
	ctx := observe.WithAttemptInfo(context.Background(), info)

	got, ok := observe.AttemptFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, info, got)
}

func TestAttemptFromContextMissing(t *testing.T) {
	_, ok := observe.AttemptFromContext(context.Background())
	assert.False(t, ok)
}
