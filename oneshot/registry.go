// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package oneshot

import (
	"math"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"golang.org/x/exp/slices"
)

// Registry holds all pending one-shot timers for a single execution context.
// See the package documentation for details.
//
// Registry must be constructed using [New].
type Registry struct {
	// Prevent copying
	_ [0]func()

	scheduler   Scheduler
	clock       Clock
	environment Environment
	logger      *logiface.Logger[logiface.Event]
	warnLimiter *catrate.Limiter

	// reply is the channel the wake-up source delivers events to
	reply chan<- Event

	// timers is ordered descending by (scheduledFor, handle), the last
	// element is the soonest-due
	timers []*timer

	// firing is the batch currently being invoked, by Fire
	firing []*timer

	suspendedSince time.Time
	// suspensionOffset is the total time spent suspended, subtracted from
	// the clock, to get the base time
	suspensionOffset time.Duration
	expectedEventID  EventID
	// nextHandle is the last allocated handle
	nextHandle Handle
	suspended  bool
}

// timer is a single pending callback.
type timer struct {
	callback     Callback
	scheduledFor time.Time
	handle       Handle
	source       Source
	// canceled is only set for timers that were removed from the live set
	// as part of the batch currently being fired
	canceled bool
}

// New constructs a [Registry], which will send requests to scheduler.
//
// The reply channel, that the wake-up source delivers to, is installed
// separately, using [Registry.SetupScheduling].
func New(scheduler Scheduler, opts ...Option) (*Registry, error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}

	options, err := resolveRegistryOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Registry{
		scheduler:   scheduler,
		clock:       options.clock,
		environment: options.environment,
		logger:      options.logger,
		warnLimiter: options.warnLimiter,
	}, nil
}

// SetupScheduling installs the channel that [Event] values should be
// delivered to. It may only be called once.
func (x *Registry) SetupScheduling(reply chan<- Event) error {
	if x.reply != nil {
		return ErrSchedulingAlreadySetup
	}
	x.reply = reply
	return nil
}

// Schedule adds a timer, that will invoke callback once duration has elapsed
// (on the adjusted clock), returning its handle. Negative durations are
// treated as zero. A nil callback is permitted, and does nothing when fired.
//
// If the new timer is the soonest-due, a new wake request is issued,
// superseding any outstanding request.
func (x *Registry) Schedule(callback Callback, duration time.Duration, source Source) Handle {
	if duration < 0 {
		duration = 0
	}

	if x.nextHandle == math.MaxUint32 {
		panic("oneshot: timer handle space exhausted")
	}
	x.nextHandle++
	handle := x.nextHandle

	t := &timer{
		callback:     callback,
		scheduledFor: x.baseTime().Add(duration),
		handle:       handle,
		source:       source,
	}

	// the new handle is greater than any existing, so never found
	i, _ := slices.BinarySearchFunc(x.timers, t, compareTimers)
	x.timers = slices.Insert(x.timers, i, t)

	if x.isNext(handle) {
		x.scheduleWake()
	}

	return handle
}

// Cancel removes the timer identified by handle, guaranteeing it will not be
// invoked, unless it is already being invoked. Cancel is idempotent, and
// unknown handles are ignored.
func (x *Registry) Cancel(handle Handle) {
	wasNext := x.isNext(handle)

	if i := slices.IndexFunc(x.timers, func(t *timer) bool { return t.handle == handle }); i >= 0 {
		x.timers = slices.Delete(x.timers, i, i+1)
	} else {
		// may be part of the batch currently being fired
		for _, t := range x.firing {
			if t != nil && t.handle == handle {
				t.canceled = true
				break
			}
		}
	}

	if wasNext {
		x.invalidateExpectedEventID()
		x.scheduleWake()
	}
}

// Fire handles a wake notification, carrying the given token. Stale tokens
// are ignored. Otherwise, every timer due at the current (adjusted) time is
// removed, then invoked in order, checking the [Environment] prior to each
// invocation. If the environment indicates that it cannot continue, the
// remainder of the batch is abandoned, and no new request is issued.
//
// Panics raised by callbacks are recovered and logged.
func (x *Registry) Fire(id EventID) {
	if id != x.expectedEventID {
		x.logger.Debug().
			Uint64("event_id", uint64(id)).
			Uint64("expected_event_id", uint64(x.expectedEventID)).
			Log("oneshot: ignoring stale timer event")
		return
	}

	if x.suspended {
		// suspending always invalidates the expected id
		x.logger.Err().
			Uint64("event_id", uint64(id)).
			Log("oneshot: timer event accepted while suspended")
		return
	}

	baseTime := x.baseTime()

	// since the event id was the expected one, at least one timer should be due
	if next := x.peek(); next == nil || baseTime.Before(next.scheduledFor) {
		b := x.logger.Err().
			Uint64("event_id", uint64(id)).
			Time("base_time", baseTime)
		if next != nil {
			b = b.Uint64("handle", uint64(next.handle)).
				Time("scheduled_for", next.scheduledFor)
		}
		b.Log("oneshot: unexpected timing")
		x.scheduleWake()
		return
	}

	// select timers to run, prior to running any, to avoid running timers
	// that were scheduled by other timers, within the same pass
	var batch []*timer
	for next := x.peek(); next != nil && !next.scheduledFor.After(baseTime); next = x.peek() {
		batch = append(batch, next)
		x.timers[len(x.timers)-1] = nil
		x.timers = x.timers[:len(x.timers)-1]
	}

	x.logger.Debug().
		Uint64("event_id", uint64(id)).
		Int("batch_size", len(batch)).
		Int("remaining", len(x.timers)).
		Log("oneshot: firing timers")

	outer := x.firing
	x.firing = batch
	defer func() { x.firing = outer }()

	for i, t := range batch {
		// e.g. the owning script was interrupted, by a previous callback
		if !x.environment.CanContinue() {
			x.logger.Debug().
				Int("abandoned", len(batch)-i).
				Log("oneshot: environment cannot continue, abandoning timers")
			return
		}
		batch[i] = nil
		if t.canceled {
			continue
		}
		x.invoke(t)
	}

	x.scheduleWake()
}

// Suspend freezes the adjusted clock, and invalidates any outstanding
// request. It is idempotent.
func (x *Registry) Suspend() {
	if x.suspended {
		x.warn("suspend", "oneshot: suspending an already suspended registry")
		return
	}

	x.logger.Debug().Log("oneshot: suspending timers")
	x.suspendedSince = x.clock.Now()
	x.suspended = true
	x.invalidateExpectedEventID()
}

// Resume unfreezes the adjusted clock, shifting it back by the time spent
// suspended, and issues a request for the soonest-due timer, if any. It is
// idempotent.
func (x *Registry) Resume() {
	if !x.suspended {
		x.warn("resume", "oneshot: resuming an already resumed registry")
		return
	}

	additional := x.clock.Now().Sub(x.suspendedSince)
	if additional < 0 {
		additional = 0
	}

	x.logger.Debug().
		Dur("suspended_for", additional).
		Log("oneshot: resuming timers")

	x.suspensionOffset += additional
	x.suspendedSince = time.Time{}
	x.suspended = false

	x.scheduleWake()
}

// SoonestDue returns the handle of the timer that will fire next, if any.
func (x *Registry) SoonestDue() (Handle, bool) {
	if t := x.peek(); t != nil {
		return t.handle, true
	}
	return 0, false
}

// Len returns the number of pending timers, excluding any currently being
// fired.
func (x *Registry) Len() int { return len(x.timers) }

// Suspended indicates if the registry is currently suspended.
func (x *Registry) Suspended() bool { return x.suspended }

// ExpectedEventID returns the token that [Registry.Fire] will currently
// accept.
func (x *Registry) ExpectedEventID() EventID { return x.expectedEventID }

// SuspensionOffset returns the accumulated time spent suspended, excluding
// any current suspension.
func (x *Registry) SuspensionOffset() time.Duration { return x.suspensionOffset }

// Now returns the current time, on the adjusted clock, that scheduled times
// are relative to.
func (x *Registry) Now() time.Time { return x.baseTime() }

func (x *Registry) baseTime() time.Time {
	if x.suspended {
		return x.suspendedSince.Add(-x.suspensionOffset)
	}
	return x.clock.Now().Add(-x.suspensionOffset)
}

func (x *Registry) peek() *timer {
	if n := len(x.timers); n != 0 {
		return x.timers[n-1]
	}
	return nil
}

func (x *Registry) isNext(handle Handle) bool {
	t := x.peek()
	return t != nil && t.handle == handle
}

// scheduleWake issues a request for the soonest-due timer, if any, unless
// suspended, in which case the request will be issued on resume.
//
// The delay is relative to the adjusted clock (see [Registry.Now]), as
// scheduled times are. Measuring from the unadjusted clock would request
// wakes early by the suspension offset, after any resume, and early wakes
// are rejected by [Registry.Fire] as unexpected timing.
func (x *Registry) scheduleWake() {
	if x.suspended {
		return
	}

	t := x.peek()
	if t == nil {
		return
	}

	id := x.invalidateExpectedEventID()

	delay := t.scheduledFor.Sub(x.baseTime())
	if delay < 0 {
		delay = 0
	}

	if x.reply == nil {
		x.warn("setup", "oneshot: scheduling timer without a reply channel")
	}

	x.scheduler.ScheduleWake(Request{
		Reply:   x.reply,
		Source:  t.source,
		EventID: id,
		Delay:   delay,
	})
}

func (x *Registry) invalidateExpectedEventID() EventID {
	previous := x.expectedEventID
	x.expectedEventID++
	x.logger.Trace().
		Uint64("previous", uint64(previous)).
		Uint64("expected_event_id", uint64(x.expectedEventID)).
		Log("oneshot: invalidating expected timer event")
	return x.expectedEventID
}

func (x *Registry) invoke(t *timer) {
	if t.callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Uint64("handle", uint64(t.handle)).
				Stringer("source", t.source).
				Any("panic", r).
				Log("oneshot: timer callback panicked")
		}
	}()

	t.callback.Invoke()
}

// warn logs a warning, unless rate limited, per category.
func (x *Registry) warn(category, msg string) {
	b := x.logger.Warning()
	if !b.Enabled() {
		return
	}
	if _, ok := x.warnLimiter.Allow(category); !ok {
		b.Release()
		return
	}
	b.Log(msg)
}

// compareTimers orders timers descending by (scheduledFor, handle).
func compareTimers(a, b *timer) int {
	switch {
	case a.scheduledFor.After(b.scheduledFor):
		return -1
	case a.scheduledFor.Before(b.scheduledFor):
		return 1
	case a.handle > b.handle:
		return -1
	case a.handle < b.handle:
		return 1
	default:
		return 0
	}
}
