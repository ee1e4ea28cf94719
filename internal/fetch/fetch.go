// Package fetch performs a single hedged attempt against the upstream.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aponysus/hedgeproxy/internal/outcome"
)

// HTTPDoer is the HTTP-client capability the fetcher consumes. It
// returns the status code and body on any response it received, or a
// non-nil error for a transport failure (connect, DNS, read, timeout).
//
// Implementations must respect ctx: they should abort the request and
// return ctx.Err() (or an equivalent wrapped error) once ctx is done.
type HTTPDoer interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// Fetcher performs one upstream GET, honoring a pre-delay stagger and
// a per-attempt transport timeout, and classifies the result into an
// outcome.Outcome. It never panics or returns an error across its
// boundary — every call yields exactly one Outcome.
type Fetcher struct {
	Client HTTPDoer
	Logger *zap.Logger
}

// New builds a Fetcher. A nil logger is replaced with a no-op logger.
func New(client HTTPDoer, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{Client: client, Logger: logger}
}

// Do sleeps preDelay (cooperatively cancellable via ctx), then performs
// one GET against url bounded by perAttemptTimeout. The caller is
// responsible for cancelling ctx to stop a straggling attempt; Do
// returns KindCancelled as soon as ctx.Done() is observed at a
// suspension point, and never opens a socket if cancellation lands
// during the pre-delay.
func (f *Fetcher) Do(ctx context.Context, url string, preDelay, perAttemptTimeout time.Duration) outcome.Outcome {
	if preDelay > 0 {
		timer := time.NewTimer(preDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return outcome.Outcome{Kind: outcome.KindCancelled, Reason: "cancelled_during_predelay"}
		case <-timer.C:
		}
	} else {
		select {
		case <-ctx.Done():
			return outcome.Outcome{Kind: outcome.KindCancelled, Reason: "cancelled_during_predelay"}
		default:
		}
	}

	attemptCtx := ctx
	var cancel context.CancelFunc
	if perAttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, perAttemptTimeout)
		defer cancel()
	}

	status, body, err := f.Client.Get(attemptCtx, url)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return outcome.Outcome{Kind: outcome.KindCancelled, Reason: "cancelled_in_flight"}
		}
		return outcome.Outcome{Kind: outcome.KindTransportError, Reason: err.Error()}
	}

	if status != 200 {
		f.Logger.Warn("upstream returned non-200 status", zap.Int("status", status))
		return outcome.Outcome{Kind: outcome.KindBadStatus, StatusCode: status, Reason: "bad_status"}
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		f.Logger.Warn("upstream returned invalid JSON")
		return outcome.Outcome{Kind: outcome.KindInvalidJSON, StatusCode: status, Reason: "invalid_json"}
	}

	return outcome.Outcome{Kind: outcome.KindSuccess, StatusCode: status, Body: body}
}
