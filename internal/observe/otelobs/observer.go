// Package otelobs reports hedge-coordinator lifecycle events as
// OpenTelemetry spans. Adapted from the teacher library's
// examples/otel/observer.go: one span per race, one event per
// attempt.
package otelobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

// Observer emits one span per SmartRequest race.
type Observer struct {
	observe.BaseObserver
	tracer trace.Tracer
}

// New builds an Observer that emits spans on tracer.
func New(tracer trace.Tracer) *Observer {
	return &Observer{tracer: tracer}
}

func (o *Observer) OnRaceEnd(ctx context.Context, key policykey.Key, tl observe.Timeline) {
	if o == nil || o.tracer == nil {
		return
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindClient)}
	if !tl.Start.IsZero() {
		startOpts = append(startOpts, trace.WithTimestamp(tl.Start))
	}
	_, span := o.tracer.Start(ctx, "hedgeproxy.race."+key.String(), startOpts...)
	span.SetAttributes(
		attribute.String("hedgeproxy.key", key.String()),
		attribute.Int("hedgeproxy.attempts", len(tl.Attempts)),
		attribute.String("hedgeproxy.result", string(tl.Result)),
	)

	for _, attempt := range tl.Attempts {
		attrs := []attribute.KeyValue{
			attribute.Int("hedgeproxy.attempt_index", attempt.Index),
			attribute.Bool("hedgeproxy.hedge", attempt.IsHedge),
			attribute.String("hedgeproxy.outcome", attempt.Outcome.Kind.String()),
		}
		eventOpts := []trace.EventOption{trace.WithAttributes(attrs...)}
		if !attempt.EndTime.IsZero() {
			eventOpts = append(eventOpts, trace.WithTimestamp(attempt.EndTime))
		}
		span.AddEvent("attempt", eventOpts...)
	}

	if tl.Result == observe.RaceWon {
		span.SetStatus(codes.Ok, "success")
	} else {
		span.SetStatus(codes.Error, string(tl.Result))
	}

	if !tl.End.IsZero() {
		span.End(trace.WithTimestamp(tl.End))
		return
	}
	span.End()
}
