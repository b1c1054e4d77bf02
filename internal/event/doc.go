/*
Package event provides a type-safe, pub/sub event bus decoupling HintPolicy,
NudgeDetector, and the out-of-core analyzer from WSSession.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while keeping direct-call semantics so subscribers receive typed Data
values, not serialized payloads.

# Event Types

Session lifecycle: session.started, session.ended, session.parked,
session.reclaimed.

Coaching signals: hint.given (HintState.TotalGiven incremented),
nudge.emitted (idle/flailing/wait_time).

Opaque analyzer events forwarded verbatim to the client, per spec §9:
approach.classified, approach.duplicate, solution.count_updated.

# Basic usage

	event.PublishSync(event.Event{
		Type: event.HintGiven,
		Data: event.HintGivenData{SessionID: id, Level: 2},
	})

	unsubscribe := event.Subscribe(event.NudgeEmitted, func(e event.Event) {
		data := e.Data.(event.NudgeEmittedData)
		log.Info().Str("session", data.SessionID).Msg("nudge emitted")
	})
	defer unsubscribe()

# Subscriber safety

PublishSync calls subscribers synchronously in the publisher's goroutine.
Subscribers must complete quickly and never call Publish/PublishSync
re-entrantly.

# Testing

event.Reset() clears the global bus between tests.
*/
package event
