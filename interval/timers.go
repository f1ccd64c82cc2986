// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package interval

import (
	"math"
	"time"

	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

const (
	// MaxNestingLevel is the nesting level, beyond which durations are
	// clamped to at least MinNestedTimeout.
	MaxNestingLevel = 5

	// MinNestedTimeout is the minimum duration of timers nested deeper than
	// MaxNestingLevel.
	MinNestedTimeout = 4 * time.Millisecond
)

type (
	// Handle identifies a timer set via [Timers.Set], and remains the same
	// across each repetition of an interval.
	Handle uint32

	// Callback is invoked when a timer fires, with the arguments provided to
	// [Timers.Set].
	Callback interface {
		Call(args []any)
	}

	// CallbackFunc implements [Callback] using a function.
	CallbackFunc func(args []any)

	// Interaction models the "is the user interacting" state of the owning
	// context, which timer callbacks inherit from the code that set them.
	Interaction interface {
		UserInteracting() bool
		SetUserInteracting(v bool)
	}

	// Timers is the public timer API of a single execution context, see the
	// package documentation. It must be constructed using [New].
	Timers struct {
		// Prevent copying
		_ [0]func()

		registry    *oneshot.Registry
		logger      *logiface.Logger[logiface.Event]
		interaction Interaction

		// active maps each live handle to the one-shot timer for its next
		// firing
		active map[Handle]*entry

		throttleDuration time.Duration
		minDuration      time.Duration
		hasMinDuration   bool

		// nestingLevel is the level of the currently executing timer, or 0
		nestingLevel uint32
		// nextHandle is the last allocated handle
		nextHandle Handle
	}

	entry struct {
		oneshot oneshot.Handle
	}

	// task is scheduled with the registry, once per firing
	task struct {
		timers          *Timers
		callback        Callback
		args            []any
		duration        time.Duration
		handle          Handle
		nestingLevel    uint32
		source          oneshot.Source
		repeat          bool
		userInteracting bool
	}
)

var (
	// compile time assertions

	_ Callback         = CallbackFunc(nil)
	_ oneshot.Callback = (*task)(nil)
)

func (x CallbackFunc) Call(args []any) { x(args) }

// New constructs [Timers], scheduling via registry.
func New(registry *oneshot.Registry, opts ...Option) (*Timers, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	options, err := resolveTimersOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Timers{
		registry:         registry,
		logger:           options.logger,
		interaction:      options.interaction,
		throttleDuration: options.throttleDuration,
		active:           make(map[Handle]*entry),
	}, nil
}

// Registry returns the underlying registry.
func (x *Timers) Registry() *oneshot.Registry { return x.registry }

// Set schedules callback to be called with args, after timeout, repeating
// until cleared if repeat is true. Negative timeouts are treated as zero.
// The callback will always be invoked asynchronously, even if the timeout is
// zero.
func (x *Timers) Set(callback Callback, args []any, timeout time.Duration, repeat bool, source oneshot.Source) Handle {
	if timeout < 0 {
		timeout = 0
	}

	if x.nextHandle == math.MaxUint32 {
		panic("interval: timer handle space exhausted")
	}
	x.nextHandle++

	t := &task{
		timers:       x,
		callback:     callback,
		args:         args,
		duration:     timeout,
		handle:       x.nextHandle,
		nestingLevel: x.nestingLevel,
		source:       source,
		repeat:       repeat,
	}
	if x.interaction != nil {
		t.userInteracting = x.interaction.UserInteracting()
	}

	x.arm(t)

	return t.handle
}

// SetTimeout is [Timers.Set] with repeat false.
func (x *Timers) SetTimeout(callback Callback, timeout time.Duration, args ...any) Handle {
	return x.Set(callback, args, timeout, false, oneshot.SourceWindow)
}

// SetInterval is [Timers.Set] with repeat true.
func (x *Timers) SetInterval(callback Callback, timeout time.Duration, args ...any) Handle {
	return x.Set(callback, args, timeout, true, oneshot.SourceWindow)
}

// Clear cancels the timer identified by handle, which will not be called
// again, unless it is currently executing. Clear is idempotent, and unknown
// handles are ignored.
func (x *Timers) Clear(handle Handle) {
	e, ok := x.active[handle]
	if !ok {
		return
	}
	delete(x.active, handle)
	x.registry.Cancel(e.oneshot)
}

// SetMinDuration configures a minimum duration, applied to timers as they
// are (re-)armed. Timers already scheduled are unaffected.
func (x *Timers) SetMinDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	x.minDuration = d
	x.hasMinDuration = true
}

// ClearMinDuration removes the minimum duration, if any.
func (x *Timers) ClearMinDuration() {
	x.minDuration = 0
	x.hasMinDuration = false
}

// MinDuration returns the configured minimum duration, if any.
func (x *Timers) MinDuration() (time.Duration, bool) {
	return x.minDuration, x.hasMinDuration
}

// SlowDown installs the throttle duration (see [WithThrottleDuration]) as
// the minimum duration, e.g. when the owning document becomes hidden.
func (x *Timers) SlowDown() {
	x.logger.Debug().
		Dur("min_duration", x.throttleDuration).
		Log("interval: slowing down timers")
	x.SetMinDuration(x.throttleDuration)
}

// SpeedUp reverts [Timers.SlowDown].
func (x *Timers) SpeedUp() {
	x.logger.Debug().Log("interval: speeding up timers")
	x.ClearMinDuration()
}

// NestingLevel returns the nesting level of the currently executing timer
// callback, or 0 if no timer callback is executing.
func (x *Timers) NestingLevel() uint32 { return x.nestingLevel }

// Len returns the number of active timers.
func (x *Timers) Len() int { return len(x.active) }

// Lookup returns the one-shot handle currently representing the next firing
// of the timer identified by handle.
func (x *Timers) Lookup(handle Handle) (oneshot.Handle, bool) {
	if e, ok := x.active[handle]; ok {
		return e.oneshot, true
	}
	return 0, false
}

// ClampDuration applies the nested timer clamp, for a timer being armed at
// the given nesting level.
func ClampDuration(nestingLevel uint32, d time.Duration) time.Duration {
	var lowerBound time.Duration
	if nestingLevel > MaxNestingLevel {
		lowerBound = MinNestedTimeout
	}
	return max(lowerBound, d)
}

// userAgentPad applies the minimum duration, if any.
func (x *Timers) userAgentPad(d time.Duration) time.Duration {
	if x.hasMinDuration {
		return max(x.minDuration, d)
	}
	return d
}

// arm schedules the next firing of t, and points its handle at it.
func (x *Timers) arm(t *task) {
	level := t.nestingLevel

	duration := x.userAgentPad(ClampDuration(level, t.duration))

	// nested timers set while t runs are relative to this
	t.nestingLevel = level + 1

	oneshotHandle := x.registry.Schedule(t, duration, t.source)

	e, ok := x.active[t.handle]
	if !ok {
		e = new(entry)
		x.active[t.handle] = e
	}
	e.oneshot = oneshotHandle

	x.logger.Trace().
		Uint64("handle", uint64(t.handle)).
		Uint64("oneshot", uint64(oneshotHandle)).
		Dur("duration", duration).
		Int64("nesting_level", int64(level)).
		Log("interval: armed timer")
}

func (t *task) Invoke() { t.timers.invoke(t) }

func (x *Timers) invoke(t *task) {
	if !t.repeat {
		delete(x.active, t.handle)
	}

	x.nestingLevel = t.nestingLevel

	var wasInteracting bool
	if x.interaction != nil {
		wasInteracting = x.interaction.UserInteracting()
		x.interaction.SetUserInteracting(t.userInteracting)
	}

	// the callback may panic, the registry recovers, but intervals still
	// repeat
	defer func() {
		if x.interaction != nil {
			x.interaction.SetUserInteracting(wasInteracting)
		}

		x.nestingLevel = 0

		// re-arm only if not cleared, including by the callback itself
		if _, ok := x.active[t.handle]; t.repeat && ok {
			x.arm(t)
		}
	}()

	if t.callback != nil {
		t.callback.Call(t.args)
	}
}
