// Package oneshot implements the registry of pending one-shot timed callbacks
// owned by a single execution context (a script scope, or event loop).
//
// A [Registry] keeps every pending timer in one ordered collection, and talks
// to an external wake-up source (a [Scheduler]) by sending, at most, one
// outstanding [Request] at a time. The wake-up source later delivers an
// [Event] back to the owning context, which passes its token to
// [Registry.Fire]. Tokens are invalidated whenever the soonest-due timer
// changes, or the registry is suspended, so superseded notifications are
// dropped on arrival, rather than cancelled at the source.
//
// # Ordering
//
// Timers fire in ascending scheduled time, ties broken by ascending
// [Handle], i.e. the timer scheduled first fires first. Every timer due at
// the time a notification is accepted is moved out of the live collection
// before any callback runs, so timers scheduled by callbacks are never
// picked up by the same pass.
//
// # Suspension
//
// [Registry.Suspend] freezes the registry's clock, and [Registry.Resume]
// adds the time spent suspended to an offset, subtracted from the
// [Clock] for all later calculations. Pending timers are therefore shifted
// later by exactly the suspended duration.
//
// # Thread Safety
//
// A Registry is not safe for concurrent use. All methods must be called from
// the goroutine that owns the execution context, including callbacks that
// schedule or cancel further timers. Only the [Scheduler] and the delivery
// of [Event] values cross goroutines.
package oneshot
