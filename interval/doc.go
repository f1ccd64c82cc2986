// Package interval implements setTimeout/setInterval style timers, on top of
// a [oneshot.Registry].
//
// [Timers] gives callers a stable [Handle] for both one-shot and repeating
// timers. Each firing of a repeating timer is a separate one-shot timer, and
// the handle is re-pointed at the next one, after each invocation, unless the
// timer was cleared (including by its own callback).
//
// Durations are clamped following the HTML timer initialisation steps: once
// timers have been nested (scheduled from within timer callbacks, including
// repetitions of the same interval) more than [MaxNestingLevel] deep, the
// duration is at least [MinNestedTimeout]. An optional minimum duration may
// additionally be configured, e.g. to throttle a background context.
//
// Like the registry, Timers is not safe for concurrent use.
package interval
