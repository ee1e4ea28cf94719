package hedge_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/hedgeproxy/internal/fetch"
	"github.com/aponysus/hedgeproxy/internal/hedge"
	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

// scriptedStep is one upstream response: an invalid body, status and
// delay are scripted in call order, matching spec.md §8's
// (body, status, delay_ms) triples.
type scriptedStep struct {
	body   string
	status int
	delay  time.Duration
}

// scriptedClient serves scriptedSteps in the order Get is called,
// which matches attempt launch order (attempt 0 is unblocked first,
// then whichever of 1/2 resolves their pre-delay next).
type scriptedClient struct {
	mu    sync.Mutex
	steps []scriptedStep
	calls int
}

func (c *scriptedClient) Get(ctx context.Context, url string) (int, []byte, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.mu.Unlock()

	if idx >= len(c.steps) {
		<-ctx.Done()
		return 0, nil, ctx.Err()
	}
	step := c.steps[idx]

	timer := time.NewTimer(step.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-timer.C:
	}

	if step.status == 0 {
		return 0, nil, assert.AnError
	}
	return step.status, []byte(step.body), nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestCoordinator(steps []scriptedStep) (*hedge.Coordinator, *scriptedClient) {
	client := &scriptedClient{steps: steps}
	fetcher := fetch.New(client, nil)
	return hedge.New(fetcher), client
}

func timeJSON(ms int) string {
	b, _ := json.Marshal(map[string]int{"time": ms})
	return string(b)
}

func TestCoordinatorFastSingleHedge(t *testing.T) {
	steps := []scriptedStep{
		{body: timeJSON(100), status: 200, delay: 290 * time.Millisecond},
		{body: timeJSON(10), status: 200, delay: 10 * time.Millisecond},
		{body: timeJSON(10), status: 200, delay: 10 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	start := time.Now()
	body, result, _ := coord.Race(context.Background(), key, "http://upstream", false, 0)
	elapsed := time.Since(start)

	require.Equal(t, observe.RaceWon, result)
	assert.JSONEq(t, timeJSON(100), string(body))
	assert.Equal(t, 1, client.callCount())
	assert.InDelta(t, 290*time.Millisecond, elapsed, float64(60*time.Millisecond))
}

func TestCoordinatorStaggerTriggersHedges(t *testing.T) {
	steps := []scriptedStep{
		{body: timeJSON(300), status: 200, delay: 301 * time.Millisecond},
		{body: timeJSON(300), status: 200, delay: 300 * time.Millisecond},
		{body: timeJSON(300), status: 200, delay: 300 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	body, result, _ := coord.Race(context.Background(), key, "http://upstream", false, 0)

	require.Equal(t, observe.RaceWon, result)
	assert.JSONEq(t, timeJSON(300), string(body))
	assert.Equal(t, 3, client.callCount())
}

func TestCoordinatorDeadlineCutsBeforeAnyHedge(t *testing.T) {
	steps := []scriptedStep{
		{body: timeJSON(600), status: 200, delay: 600 * time.Millisecond},
		{body: timeJSON(600), status: 200, delay: 600 * time.Millisecond},
		{body: timeJSON(600), status: 200, delay: 600 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	start := time.Now()
	_, result, _ := coord.Race(context.Background(), key, "http://upstream", true, 200*time.Millisecond)
	elapsed := time.Since(start)

	require.Equal(t, observe.RaceTimeout, result)
	assert.Equal(t, 1, client.callCount())
	assert.InDelta(t, 200*time.Millisecond, elapsed, float64(60*time.Millisecond))
}

func TestCoordinatorDeadlineCutsMidRace(t *testing.T) {
	steps := []scriptedStep{
		{body: timeJSON(1000), status: 200, delay: 1000 * time.Millisecond},
		{body: timeJSON(1000), status: 200, delay: 1000 * time.Millisecond},
		{body: timeJSON(1000), status: 200, delay: 1000 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	start := time.Now()
	_, result, _ := coord.Race(context.Background(), key, "http://upstream", true, 500*time.Millisecond)
	elapsed := time.Since(start)

	require.Equal(t, observe.RaceTimeout, result)
	assert.Equal(t, 3, client.callCount())
	assert.InDelta(t, 500*time.Millisecond, elapsed, float64(60*time.Millisecond))
}

func TestCoordinatorFirstAttemptInvalidJSONLaterSuccess(t *testing.T) {
	steps := []scriptedStep{
		{body: "Invalid", status: 200, delay: 10 * time.Millisecond},
		{body: timeJSON(210), status: 200, delay: 210 * time.Millisecond},
		{body: timeJSON(100), status: 200, delay: 100 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	body, result, _ := coord.Race(context.Background(), key, "http://upstream", false, 0)

	require.Equal(t, observe.RaceWon, result)
	assert.JSONEq(t, timeJSON(100), string(body))
	assert.Equal(t, 3, client.callCount())
}

func TestCoordinatorFirstAttemptBadStatusFirstSubsequentSuccessWins(t *testing.T) {
	steps := []scriptedStep{
		{body: timeJSON(400), status: 200, delay: 400 * time.Millisecond},
		{body: timeJSON(210), status: 500, delay: 50 * time.Millisecond},
		{body: timeJSON(100), status: 200, delay: 200 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	body, result, _ := coord.Race(context.Background(), key, "http://upstream", false, 0)

	require.Equal(t, observe.RaceWon, result)
	assert.JSONEq(t, timeJSON(400), string(body))
	assert.Equal(t, 3, client.callCount())
}

func TestCoordinatorAllInvalid(t *testing.T) {
	steps := []scriptedStep{
		{body: "Invalid", status: 200, delay: 600 * time.Millisecond},
		{body: timeJSON(210), status: 500, delay: 300 * time.Millisecond},
		{body: "Invalid", status: 200, delay: 400 * time.Millisecond},
	}
	coord, client := newTestCoordinator(steps)
	key := policykey.ForUpstream("test")

	_, result, _ := coord.Race(context.Background(), key, "http://upstream", false, 0)

	require.Equal(t, observe.RaceExhausted, result)
	assert.Equal(t, 3, client.callCount())
}
