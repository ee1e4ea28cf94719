package hedge

import "time"

// HedgeState is the information a Trigger needs to decide whether the
// next hedge should be launched.
type HedgeState struct {
	AttemptsLaunched int // including the primary attempt
	Elapsed          time.Duration
}

// Trigger decides when to launch the next hedge. ShouldSpawnHedge
// returns whether to spawn now, and if not, how long to wait before
// asking again (0 means "don't bother asking again unprompted").
//
// Adapted from the teacher library's hedge.Trigger
// (hedge/fixed_delay.go); here the coordinator only ever has one
// hedge trigger wired in (FixedDelayTrigger), but the interface keeps
// the stagger schedule out of the coordinator's control flow.
type Trigger interface {
	ShouldSpawnHedge(state HedgeState) (spawn bool, nextCheck time.Duration)
}

// FixedDelayTrigger spawns every hedge at a fixed delay after the
// primary attempt started. It does not stagger hedges from each
// other: attempts 2..N all become eligible at the same Delay, matching
// spec's "[0, 300, 300]" schedule.
type FixedDelayTrigger struct {
	Delay time.Duration
}

func (t FixedDelayTrigger) ShouldSpawnHedge(state HedgeState) (bool, time.Duration) {
	if state.Elapsed < t.Delay {
		return false, t.Delay - state.Elapsed
	}
	return true, 0
}
