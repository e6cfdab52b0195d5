package provider

import (
	"context"

	"byom/config"
	"byom/model"
)

// eventSink delivers a single attempt's events and remembers whether any
// content reached the caller, which makes the attempt non-retryable.
type eventSink struct {
	out       chan<- model.StreamEvent
	delivered bool
	finished  bool
}

func (s *eventSink) send(ev model.StreamEvent) {
	switch ev.Kind {
	case model.StreamTextDelta, model.StreamThinkingDelta, model.StreamToolCallStart,
		model.StreamToolCallArgDelta, model.StreamToolCallComplete:
		s.delivered = true
	}
	s.out <- ev
}

func (s *eventSink) sendAll(events []model.StreamEvent) {
	for _, ev := range events {
		s.send(ev)
	}
}

// done emits the retained usage (if any) followed by the terminal Done.
func (s *eventSink) done(finishReason string, usage *model.Usage) {
	if usage != nil {
		s.out <- model.UsageEvent(*usage)
	}
	s.out <- model.DoneEvent(finishReason, usage)
	s.finished = true
}

// attemptFunc performs one backend request, streaming into sink. It returns
// nil after calling sink.done.
type attemptFunc func(ctx context.Context, sink *eventSink) error

// runStream runs attempt under policy and returns the canonical event channel.
// Retries happen only while nothing has been delivered for the attempt.
func runStream(ctx context.Context, name string, policy RetryPolicy, attempt attemptFunc) <-chan model.StreamEvent {
	out := make(chan model.StreamEvent)

	go func() {
		defer close(out)

		for n := 0; ; n++ {
			sink := &eventSink{out: out}
			err := attempt(ctx, sink)
			if err == nil {
				if !sink.finished {
					sink.done("stop", nil)
				}
				return
			}

			perr := classify(name, err)
			if ctx.Err() != nil {
				perr = &Error{Kind: ErrorCancelled, Provider: name, Cause: ctx.Err()}
			}

			if sink.delivered || !IsRetryable(perr) || n >= policy.MaxRetries {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[Provider] %s request failed after %d attempt(s): %v", name, n+1, perr)
				}
				out <- model.ErrorEvent(string(perr.Kind), perr.describe(n))
				return
			}

			delay := policy.Delay(n)
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Retry] %s %s, retry %d/%d in %v", name, perr.Kind, n+1, policy.MaxRetries, delay)
			}
			if policy.OnRetry != nil {
				policy.OnRetry(perr, n+1, delay)
			}

			if err := wait(ctx, delay); err != nil {
				cancelled := &Error{Kind: ErrorCancelled, Provider: name, Cause: err}
				out <- model.ErrorEvent(string(cancelled.Kind), cancelled.describe(n))
				return
			}
		}
	}()

	return out
}
