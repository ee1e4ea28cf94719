// Package outcome describes the tagged result of a single hedged attempt.
//
// It is the AttemptOutcome variant from the hedge coordinator's data
// model: every fetcher, regardless of how it failed or succeeded,
// reduces to exactly one Outcome value. Nothing in this package
// suspends or blocks; it is pure classification.
package outcome

// Kind identifies which variant of AttemptOutcome a value carries.
type Kind int

const (
	// KindSuccess means HTTP 200 and a body that parses as JSON.
	KindSuccess Kind = iota
	// KindBadStatus means any non-200 HTTP status.
	KindBadStatus
	// KindInvalidJSON means HTTP 200 but a body that does not parse as JSON.
	KindInvalidJSON
	// KindTransportError means a connection error, DNS failure, read
	// error, or timeout before a status line was received.
	KindTransportError
	// KindCancelled means the attempt observed cancellation at a
	// suspension point (pre-delay sleep or in-flight request) before
	// it reached a terminal outcome of its own.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindBadStatus:
		return "bad_status"
	case KindInvalidJSON:
		return "invalid_json"
	case KindTransportError:
		return "transport_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetcher attempt.
type Outcome struct {
	Kind Kind

	// Body and StatusCode are only meaningful for KindSuccess and
	// KindBadStatus/KindInvalidJSON respectively.
	Body       []byte
	StatusCode int

	// Reason carries a human-readable classification detail, e.g. the
	// transport error text or "bad_status". Logged, never parsed.
	Reason string
}

// Success reports whether this outcome is a winning attempt.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

// Failed reports whether this outcome counts toward failed_attempts
// in the coordinator's RaceState (everything except Success and
// Cancelled — a cancelled attempt never got the chance to fail).
func (o Outcome) Failed() bool {
	return o.Kind == KindBadStatus || o.Kind == KindInvalidJSON || o.Kind == KindTransportError
}
