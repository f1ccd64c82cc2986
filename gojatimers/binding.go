// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojatimers

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jstimers/interval"
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

// Binding bridges a [goja.Runtime] to [interval.Timers].
type Binding struct {
	runtime      *goja.Runtime
	timers       *interval.Timers
	logger       *logiface.Logger[logiface.Event]
	errorHandler func(err error)
	source       oneshot.Source
	interrupted  atomic.Bool
}

var (
	// compile time assertions

	_ oneshot.Environment = (*Binding)(nil)
)

// Bind installs the timer functions as globals of runtime, see the package
// documentation.
func Bind(runtime *goja.Runtime, timers *interval.Timers, opts ...Option) (*Binding, error) {
	x, err := newBinding(runtime, timers, opts)
	if err != nil {
		return nil, err
	}
	if err := x.setupExports(runtime.GlobalObject()); err != nil {
		return nil, err
	}
	return x, nil
}

func newBinding(runtime *goja.Runtime, timers *interval.Timers, opts []Option) (*Binding, error) {
	if runtime == nil {
		return nil, ErrNilRuntime
	}
	if timers == nil {
		return nil, ErrNilTimers
	}

	options, err := resolveBindingOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Binding{
		runtime:      runtime,
		timers:       timers,
		logger:       options.logger,
		errorHandler: options.errorHandler,
		source:       options.source,
	}, nil
}

// Runtime returns the bound runtime.
func (x *Binding) Runtime() *goja.Runtime { return x.runtime }

// Timers returns the bound timers.
func (x *Binding) Timers() *interval.Timers { return x.timers }

// CanContinue implements [oneshot.Environment], returning false once
// [Binding.Interrupt] has been called.
func (x *Binding) CanContinue() bool { return !x.interrupted.Load() }

// Interrupt stops any running script, see [goja.Runtime.Interrupt], and
// prevents any further timer handlers from running, if the binding is used
// as the environment of the registry. It is safe to call from any goroutine.
func (x *Binding) Interrupt(reason any) {
	x.interrupted.Store(true)
	x.runtime.Interrupt(reason)
	x.logger.Debug().
		Any("reason", reason).
		Log("gojatimers: interrupted")
}

func (x *Binding) setupExports(obj *goja.Object) error {
	for _, v := range [...]struct {
		name string
		fn   func(call goja.FunctionCall) goja.Value
	}{
		{`setTimeout`, x.setTimeout},
		{`setInterval`, x.setInterval},
		{`clearTimeout`, x.clearTimer},
		{`clearInterval`, x.clearTimer},
	} {
		if err := obj.Set(v.name, v.fn); err != nil {
			return err
		}
	}
	return nil
}

func (x *Binding) setTimeout(call goja.FunctionCall) goja.Value {
	return x.set(call, false)
}

func (x *Binding) setInterval(call goja.FunctionCall) goja.Value {
	return x.set(call, true)
}

// set implements both setTimeout(handler, timeout, ...arguments) and
// setInterval(handler, timeout, ...arguments).
func (x *Binding) set(call goja.FunctionCall, repeat bool) goja.Value {
	var timeout time.Duration
	if ms := toInt32(call.Argument(1)); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	var args []any
	if len(call.Arguments) > 2 {
		args = make([]any, len(call.Arguments)-2)
		for i, v := range call.Arguments[2:] {
			args[i] = v
		}
	}

	handle := x.timers.Set(x.handler(call.Argument(0)), args, timeout, repeat, x.source)

	return x.runtime.ToValue(int64(handle))
}

// clearTimer implements both clearTimeout(id) and clearInterval(id), which
// share a handle space. Unknown handles are ignored.
func (x *Binding) clearTimer(call goja.FunctionCall) goja.Value {
	if id := call.Argument(0).ToInteger(); id > 0 && id <= math.MaxUint32 {
		x.timers.Clear(interval.Handle(id))
	}
	return goja.Undefined()
}

// handler converts the handler argument, capturing either the function or
// the source to evaluate.
func (x *Binding) handler(value goja.Value) interval.Callback {
	if fn, ok := goja.AssertFunction(value); ok {
		return interval.CallbackFunc(func(args []any) {
			values := make([]goja.Value, len(args))
			for i, arg := range args {
				values[i] = arg.(goja.Value)
			}
			_, err := fn(goja.Undefined(), values...)
			x.report(err)
		})
	}

	source := value.String()
	return interval.CallbackFunc(func([]any) {
		_, err := x.runtime.RunString(source)
		x.report(err)
	})
}

func (x *Binding) report(err error) {
	if err == nil {
		return
	}
	x.logger.Err().
		Err(err).
		Log("gojatimers: uncaught exception in timer handler")
	if x.errorHandler != nil {
		x.errorHandler(err)
	}
}

// toInt32 converts value per the ECMAScript ToInt32 operation.
func toInt32(value goja.Value) int32 {
	if value == nil {
		return 0
	}
	f := value.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(f), 1<<32))))
}
