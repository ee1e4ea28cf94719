package observe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

type countingObserver struct {
	observe.BaseObserver
	raceEnds int
}

func (c *countingObserver) OnRaceEnd(context.Context, policykey.Key, observe.Timeline) {
	c.raceEnds++
}

func TestMultiObserverFansOutAndSkipsNil(t *testing.T) {
	a := &countingObserver{}
	b := &countingObserver{}
	var typedNil *countingObserver
	m := observe.MultiObserver{Observers: []observe.Observer{a, nil, typedNil, b}}

	m.OnRaceEnd(context.Background(), policykey.ForUpstream("test"), observe.Timeline{})

	assert.Equal(t, 1, a.raceEnds)
	assert.Equal(t, 1, b.raceEnds)
}

func TestBaseObserverIsNoop(t *testing.T) {
	var o observe.BaseObserver
	assert.NotPanics(t, func() {
		o.OnRaceStart(context.Background(), policykey.ForUpstream("test"))
		o.OnAttempt(context.Background(), policykey.ForUpstream("test"), observe.AttemptRecord{})
		o.OnHedgeSpawn(context.Background(), policykey.ForUpstream("test"), observe.AttemptRecord{})
		o.OnHedgeCancel(context.Background(), policykey.ForUpstream("test"), observe.AttemptRecord{}, "reason")
		o.OnBudgetDecision(context.Background(), observe.BudgetDecisionEvent{})
		o.OnRaceEnd(context.Background(), policykey.ForUpstream("test"), observe.Timeline{})
	})
}
