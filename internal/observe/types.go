// Package observe carries hedge-coordinator lifecycle events out to
// whichever observers are wired in (Prometheus, OpenTelemetry, or
// nothing at all).
//
// Adapted from the teacher library's observe/types.go: the same
// Observer shape, narrowed to the events a hedge coordinator actually
// produces (no retry/backoff/circuit-breaker events, since this
// system never retries — it only hedges a fixed fan-out of three).
package observe

import (
	"context"
	"time"

	"github.com/aponysus/hedgeproxy/internal/outcome"
	"github.com/aponysus/hedgeproxy/internal/policykey"
	"github.com/aponysus/hedgeproxy/internal/typeutil"
)

// AttemptRecord describes one fetcher attempt within a race.
type AttemptRecord struct {
	Index     int // 0 = primary, 1..N = hedges, in launch order.
	IsHedge   bool
	StartTime time.Time
	EndTime   time.Time
	Outcome   outcome.Outcome
}

// BudgetDecisionEvent describes an admission gate decision.
type BudgetDecisionEvent struct {
	Key     policykey.Key
	Allowed bool
	Reason  string
}

// RaceResult identifies how a SmartRequest's race ended.
type RaceResult string

const (
	RaceWon       RaceResult = "won"
	RaceTimeout   RaceResult = "timeout"
	RaceExhausted RaceResult = "exhausted"
)

// Timeline is the structured record of one SmartRequest and all of
// its attempts, suitable for capture in tests or debugging.
type Timeline struct {
	Key      policykey.Key
	Start    time.Time
	End      time.Time
	Attempts []AttemptRecord
	Result   RaceResult
}

// Observer receives lifecycle callbacks for one SmartRequest.
type Observer interface {
	OnRaceStart(ctx context.Context, key policykey.Key)
	OnAttempt(ctx context.Context, key policykey.Key, rec AttemptRecord)
	OnHedgeSpawn(ctx context.Context, key policykey.Key, rec AttemptRecord)
	OnHedgeCancel(ctx context.Context, key policykey.Key, rec AttemptRecord, reason string)
	OnBudgetDecision(ctx context.Context, ev BudgetDecisionEvent)
	OnRaceEnd(ctx context.Context, key policykey.Key, tl Timeline)
}

// BaseObserver is an embeddable no-op implementation of Observer;
// integrations override only the callbacks they care about.
type BaseObserver struct{}

func (BaseObserver) OnRaceStart(context.Context, policykey.Key)                              {}
func (BaseObserver) OnAttempt(context.Context, policykey.Key, AttemptRecord)                  {}
func (BaseObserver) OnHedgeSpawn(context.Context, policykey.Key, AttemptRecord)                {}
func (BaseObserver) OnHedgeCancel(context.Context, policykey.Key, AttemptRecord, string)       {}
func (BaseObserver) OnBudgetDecision(context.Context, BudgetDecisionEvent)                    {}
func (BaseObserver) OnRaceEnd(context.Context, policykey.Key, Timeline)                       {}

// NoopObserver is a named, allocation-free Observer for benchmarks and
// defaults where BaseObserver's zero value would also work but an
// explicit name reads better at call sites.
type NoopObserver struct{ BaseObserver }

// MultiObserver fans callbacks out to every non-nil Observer in
// Observers, in order.
type MultiObserver struct {
	Observers []Observer
}

func (m MultiObserver) OnRaceStart(ctx context.Context, key policykey.Key) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnRaceStart(ctx, key)
		}
	}
}

func (m MultiObserver) OnAttempt(ctx context.Context, key policykey.Key, rec AttemptRecord) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnAttempt(ctx, key, rec)
		}
	}
}

func (m MultiObserver) OnHedgeSpawn(ctx context.Context, key policykey.Key, rec AttemptRecord) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnHedgeSpawn(ctx, key, rec)
		}
	}
}

func (m MultiObserver) OnHedgeCancel(ctx context.Context, key policykey.Key, rec AttemptRecord, reason string) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnHedgeCancel(ctx, key, rec, reason)
		}
	}
}

func (m MultiObserver) OnBudgetDecision(ctx context.Context, ev BudgetDecisionEvent) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnBudgetDecision(ctx, ev)
		}
	}
}

func (m MultiObserver) OnRaceEnd(ctx context.Context, key policykey.Key, tl Timeline) {
	for _, o := range m.Observers {
		if !typeutil.IsTypedNil(o) {
			o.OnRaceEnd(ctx, key, tl)
		}
	}
}
