package audit

import (
	"github.com/stagepass/go-stagepass-core/breaker"
	"github.com/stagepass/go-stagepass-core/errcode"
	"github.com/stagepass/go-stagepass-core/limiter"
)

// LimiterListener bridges limiter store failures onto a sink as
// INFRA_FAILURE events. Per-check rejections are recorded by the
// admission controller with richer context, so plain rejection events
// are ignored here.
func LimiterListener(sink Sink) limiter.EventListener {
	return limiter.EventListenerFunc(func(event limiter.Event) {
		failure, ok := event.(*limiter.StoreFailureEvent)
		if !ok {
			return
		}
		sink.Emit(NewEvent(EventInfraFailure, failure.Key(), map[string]any{
			"errorCode": errcode.ErrInfrastructureFailure.Key(),
			"error":     failure.Err.Error(),
		}))
	})
}

// BreakerListener bridges circuit openings onto a sink as
// BREAKER_OPENED events.
func BreakerListener(sink Sink) breaker.EventListener {
	return breaker.EventListenerFunc(func(event breaker.Event) {
		change, ok := event.(*breaker.StateChangedEvent)
		if !ok || change.ToState != breaker.StateOpen {
			return
		}
		sink.Emit(NewEvent(EventBreakerOpened, change.Resource(), map[string]any{
			"from":                 change.FromState.String(),
			"to":                   change.ToState.String(),
			"consecutive_failures": change.ConsecutiveFailures,
			"reason":               change.Reason,
		}))
	})
}
