package observe

import "context"

// AttemptInfo identifies which attempt within a race a context
// belongs to, so deeply nested code (e.g. a custom HTTPDoer) can log
// or tag spans without threading the index through every call.
type AttemptInfo struct {
	Index    int
	IsHedge  bool
	KeyLabel string
}

type attemptInfoKey struct{}

// WithAttemptInfo returns a context carrying info.
func WithAttemptInfo(ctx context.Context, info AttemptInfo) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, info)
}

// AttemptFromContext returns the AttemptInfo stored by
// WithAttemptInfo, if any.
func AttemptFromContext(ctx context.Context) (AttemptInfo, bool) {
	info, ok := ctx.Value(attemptInfoKey{}).(AttemptInfo)
	return info, ok
}
