package fetch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/hedgeproxy/internal/fetch"
	"github.com/aponysus/hedgeproxy/internal/outcome"
)

type fakeDoer struct {
	status int
	body   []byte
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeDoer) Get(ctx context.Context, url string) (int, []byte, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.status, f.body, f.err
}

func TestDoClassifiesSuccess(t *testing.T) {
	doer := &fakeDoer{status: 200, body: []byte(`{"time":10}`)}
	f := fetch.New(doer, nil)

	o := f.Do(context.Background(), "http://upstream", 0, time.Second)

	require.Equal(t, outcome.KindSuccess, o.Kind)
	assert.True(t, o.Success())
	assert.Equal(t, []byte(`{"time":10}`), o.Body)
}

func TestDoClassifiesBadStatus(t *testing.T) {
	doer := &fakeDoer{status: 500, body: []byte(`{"time":10}`)}
	f := fetch.New(doer, nil)

	o := f.Do(context.Background(), "http://upstream", 0, time.Second)

	require.Equal(t, outcome.KindBadStatus, o.Kind)
	assert.True(t, o.Failed())
}

func TestDoClassifiesInvalidJSON(t *testing.T) {
	doer := &fakeDoer{status: 200, body: []byte("not json")}
	f := fetch.New(doer, nil)

	o := f.Do(context.Background(), "http://upstream", 0, time.Second)

	require.Equal(t, outcome.KindInvalidJSON, o.Kind)
	assert.True(t, o.Failed())
}

func TestDoClassifiesTransportError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	f := fetch.New(doer, nil)

	o := f.Do(context.Background(), "http://upstream", 0, time.Second)

	require.Equal(t, outcome.KindTransportError, o.Kind)
	assert.True(t, o.Failed())
}

func TestDoCancelledDuringPreDelayNeverCallsClient(t *testing.T) {
	doer := &fakeDoer{status: 200, body: []byte(`{"time":1}`)}
	f := fetch.New(doer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := f.Do(ctx, "http://upstream", 50*time.Millisecond, time.Second)

	require.Equal(t, outcome.KindCancelled, o.Kind)
	assert.False(t, o.Failed())
	assert.Equal(t, 0, doer.calls)
}

func TestDoCancelledInFlight(t *testing.T) {
	doer := &fakeDoer{status: 200, body: []byte(`{"time":1}`), delay: 500 * time.Millisecond}
	f := fetch.New(doer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	o := f.Do(ctx, "http://upstream", 0, time.Second)

	require.Equal(t, outcome.KindCancelled, o.Kind)
	assert.Equal(t, 1, doer.calls)
}
