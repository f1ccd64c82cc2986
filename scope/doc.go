// Package scope implements the owning execution context of a set of timers:
// a single goroutine that runs submitted tasks, and fires timers as their
// wake-up notifications arrive.
//
// Every method of the [oneshot.Registry] and [interval.Timers] owned by a
// [Scope] must be called from its loop goroutine, i.e. from a task passed to
// [Scope.Submit], or from a timer callback.
package scope
