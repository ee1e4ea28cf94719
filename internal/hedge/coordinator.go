// Package hedge implements the hedged-request coordinator: the state
// machine that schedules up to three staggered attempts, races them
// against each other and against a client-supplied deadline, commits
// to the first valid answer, and cancels the stragglers.
//
// This is the core of the system (spec.md calls it "the hard
// engineering"); everything else in the repository is a collaborator
// the coordinator consumes through small interfaces (fetch.HTTPDoer,
// observe.Observer).
package hedge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aponysus/hedgeproxy/internal/fetch"
	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/outcome"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

const (
	// RequestedAttempts is fixed at three: a primary attempt plus two
	// hedges. Nothing in spec.md's external interface makes this
	// configurable.
	RequestedAttempts = 3

	// DefaultStagger is the pre-delay applied to attempts 2 and 3
	// (not further staggered from each other, and not applied to the
	// primary attempt).
	DefaultStagger = 300 * time.Millisecond

	// DefaultPerAttemptTimeout bounds a single upstream GET when the
	// caller hasn't overridden it.
	DefaultPerAttemptTimeout = 10 * time.Second
)

// Coordinator executes the hedged race for one SmartRequest per call
// to Race; a single Coordinator value is reused across concurrent
// requests (it holds no per-request state).
type Coordinator struct {
	Fetcher           *fetch.Fetcher
	Trigger           Trigger
	Observer          observe.Observer
	PerAttemptTimeout time.Duration
	Tracker           *RingBufferTracker // optional; nil disables latency tracking
}

// New builds a Coordinator with the spec's default stagger/timeout and
// a no-op observer. Callers override fields (e.g. Observer) afterward.
func New(fetcher *fetch.Fetcher) *Coordinator {
	return &Coordinator{
		Fetcher:           fetcher,
		Trigger:           FixedDelayTrigger{Delay: DefaultStagger},
		Observer:          observe.NoopObserver{},
		PerAttemptTimeout: DefaultPerAttemptTimeout,
	}
}

// raceState is the per-SmartRequest coordination state described in
// spec.md §3. It is created fresh by every call to Race and discarded
// when Race returns.
type raceState struct {
	mu sync.Mutex

	winner  *outcome.Outcome
	live    int
	failed  int
	started int

	winOnce  sync.Once
	winCh    chan struct{}
	failOnce sync.Once
	failCh   chan struct{}
}

func newRaceState() *raceState {
	return &raceState{
		winCh:  make(chan struct{}),
		failCh: make(chan struct{}),
	}
}

// tryWin records outcome as the winner if none has been recorded yet.
// It reports whether this call was the one that won.
func (r *raceState) tryWin(o outcome.Outcome) bool {
	r.mu.Lock()
	won := r.winner == nil
	if won {
		cp := o
		r.winner = &cp
	}
	r.mu.Unlock()

	if won {
		r.winOnce.Do(func() { close(r.winCh) })
	}
	return won
}

// winnerSnapshot safely reads the currently recorded winner, if any.
// Unlike direct field access, this is safe to call while attempt
// goroutines may still be running (e.g. after the coordinator has
// already decided to reply and is draining stragglers in the
// background).
func (r *raceState) winnerSnapshot() *outcome.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner
}

// attemptStarted and attemptResolved maintain live/failed/started and
// fire the edge-triggered all-failed signal per spec.md §3's
// all_failed_signal definition.
func (r *raceState) attemptStarted() {
	r.mu.Lock()
	r.live++
	r.started++
	r.mu.Unlock()
}

func (r *raceState) attemptResolved(o outcome.Outcome) {
	r.mu.Lock()
	r.live--
	if o.Failed() {
		r.failed++
	}
	allFailed := r.failed == RequestedAttempts
	noneLive := r.started > 0 && r.live == 0
	fire := allFailed || noneLive
	r.mu.Unlock()

	if fire {
		r.failOnce.Do(func() { close(r.failCh) })
	}
}

// Race runs the hedged race for one SmartRequest against url.
// hasDeadline/deadline implement spec.md §4.3's edge case: when
// hasDeadline is false, the coordinator imposes no wall-clock deadline
// and returns when a winner is found or all attempts are exhausted.
// A zero or negative deadline is treated as already expired.
func (c *Coordinator) Race(ctx context.Context, key policykey.Key, url string, hasDeadline bool, deadline time.Duration) (body []byte, result observe.RaceResult, reason string) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := newRaceState()
	start := time.Now()
	c.Observer.OnRaceStart(raceCtx, key)

	capture, ok := observe.TimelineCaptureFromContext(raceCtx)
	if !ok {
		raceCtx, capture = observe.RecordTimeline(raceCtx)
	}
	var tl observe.Timeline
	tl.Key = key
	tl.Start = start
	var tlMu sync.Mutex
	appendAttempt := func(rec observe.AttemptRecord) {
		tlMu.Lock()
		tl.Attempts = append(tl.Attempts, rec)
		snapshot := tl
		snapshot.Attempts = append([]observe.AttemptRecord(nil), tl.Attempts...)
		tlMu.Unlock()
		observe.StoreTimelineCapture(capture, &snapshot)
	}

	var wg sync.WaitGroup
	launch := func(idx int, preDelay time.Duration) {
		isHedge := idx > 0
		state.attemptStarted()
		wg.Add(1)
		go func() {
			defer wg.Done()
			attemptStart := time.Now()
			attemptCtx := observe.WithAttemptInfo(raceCtx, observe.AttemptInfo{Index: idx, IsHedge: isHedge, KeyLabel: key.String()})

			if isHedge {
				c.Observer.OnHedgeSpawn(attemptCtx, key, observe.AttemptRecord{Index: idx, IsHedge: true, StartTime: attemptStart})
			}

			o := c.Fetcher.Do(attemptCtx, url, preDelay, c.PerAttemptTimeout)
			end := time.Now()

			rec := observe.AttemptRecord{Index: idx, IsHedge: isHedge, StartTime: attemptStart, EndTime: end, Outcome: o}
			appendAttempt(rec)
			c.Observer.OnAttempt(attemptCtx, key, rec)
			if c.Tracker != nil && o.Kind != outcome.KindCancelled {
				c.Tracker.Observe(end.Sub(attemptStart))
			}

			if o.Success() {
				state.tryWin(o)
			}
			state.attemptResolved(o)
		}()
	}

	var deadlineCh <-chan time.Time
	if hasDeadline {
		if deadline <= 0 {
			// Immediate expiry: treat as already elapsed; no attempt
			// is launched.
			result, reason = observe.RaceTimeout, fmt.Sprintf("deadline already elapsed (%d ms)", deadline.Milliseconds())
			cancel()
			c.drain(raceCtx, key, &tl, capture, start, result, &wg)
			return nil, result, reason
		}
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		deadlineCh = timer.C
	}

	// Primary attempt: no pre-delay.
	launch(0, 0)
	// Hedges 2 and 3: both eligible at the trigger's delay, not
	// staggered further from each other (spec.md §4.3).
	hedgeDelay := c.triggerDelay()
	launch(1, hedgeDelay)
	launch(2, hedgeDelay)

	select {
	case <-state.winCh:
		result, reason = observe.RaceWon, ""
	case <-state.failCh:
		result, reason = observe.RaceExhausted, "all attempts failed validation"
	case <-deadlineCh:
		result, reason = observe.RaceTimeout, fmt.Sprintf("No successful response within timeout (%d ms)", deadline.Milliseconds())
	}

	cancel()

	// spec.md §5: the coordinator replies as soon as it has a
	// decision; it does not wait for every attempt goroutine to notice
	// cancellation and unwind before replying to the client. Read the
	// winner through the mutex-guarded accessor since stragglers may
	// still be mutating raceState concurrently with this reply.
	if result == observe.RaceWon {
		body = state.winnerSnapshot().Body
	} else if winner := state.winnerSnapshot(); winner != nil {
		// The deadline or exhaustion fired in the same instant a
		// winner was being committed; prefer the winner.
		result, reason, body = observe.RaceWon, "", winner.Body
	}

	c.drain(raceCtx, key, &tl, capture, start, result, &wg)
	return body, result, reason
}

// drain finishes the timeline and reports OnRaceEnd once every attempt
// goroutine has unwound, without making the caller wait for it: the
// reply to the client has already been decided by the time drain is
// called, and spec.md §5 requires that stragglers finish in the
// background rather than blocking the response.
func (c *Coordinator) drain(ctx context.Context, key policykey.Key, tl *observe.Timeline, capture *observe.TimelineCapture, start time.Time, result observe.RaceResult, wg *sync.WaitGroup) {
	go func() {
		wg.Wait()
		c.finish(ctx, key, tl, capture, start, result)
	}()
}

func (c *Coordinator) finish(ctx context.Context, key policykey.Key, tl *observe.Timeline, capture *observe.TimelineCapture, start time.Time, result observe.RaceResult) {
	tl.End = time.Now()
	tl.Result = result
	observe.StoreTimelineCapture(capture, tl)
	c.Observer.OnRaceEnd(ctx, key, *tl)
}

func (c *Coordinator) triggerDelay() time.Duration {
	if c.Trigger == nil {
		return DefaultStagger
	}
	_, wait := c.Trigger.ShouldSpawnHedge(HedgeState{AttemptsLaunched: 1, Elapsed: 0})
	if wait > 0 {
		return wait
	}
	return DefaultStagger
}
