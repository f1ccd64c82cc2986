package gojatimers

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/dop251/goja"
	gojarequire "github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-jstimers/interval"
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// harness runs a goja runtime against timers driven by a manual clock.
type harness struct {
	runtime  *goja.Runtime
	clock    *oneshot.ManualClock
	registry *oneshot.Registry
	timers   *interval.Timers
	binding  *Binding
	pending  *oneshot.Request
	issuedAt time.Time
	errs     []error
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		runtime: goja.New(),
		clock:   oneshot.NewManualClock(testEpoch),
	}
	var err error
	h.registry, err = oneshot.New(
		oneshot.SchedulerFunc(func(req oneshot.Request) {
			h.pending = &req
			h.issuedAt = h.clock.Now()
		}),
		oneshot.WithClock(h.clock),
		oneshot.WithEnvironment(oneshot.EnvironmentFunc(func() bool {
			return h.binding == nil || h.binding.CanContinue()
		})),
	)
	require.NoError(t, err)
	require.NoError(t, h.registry.SetupScheduling(make(chan oneshot.Event)))
	h.timers, err = interval.New(h.registry)
	require.NoError(t, err)
	opts = append([]Option{WithErrorHandler(func(err error) { h.errs = append(h.errs, err) })}, opts...)
	h.binding, err = Bind(h.runtime, h.timers, opts...)
	require.NoError(t, err)
	require.NoError(t, h.runtime.Set(`elapsed`, func() int64 { return h.clock.Now().Sub(testEpoch).Milliseconds() }))
	return h
}

func (h *harness) run(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := h.runtime.RunString(src)
	require.NoError(t, err)
	return v
}

// runUntil fires every wake request due at or before the elapsed time until.
func (h *harness) runUntil(until time.Duration) {
	deadline := testEpoch.Add(until)
	for h.pending != nil {
		at := h.issuedAt.Add(h.pending.Delay)
		if at.After(deadline) {
			break
		}
		req := *h.pending
		h.pending = nil
		if at.After(h.clock.Now()) {
			h.clock.Set(at)
		}
		h.registry.Fire(req.EventID)
	}
	h.clock.Set(deadline)
}

func TestBind_nilArguments(t *testing.T) {
	b, err := Bind(nil, nil)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrNilRuntime)

	b, err = Bind(goja.New(), nil)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrNilTimers)
}

func TestBind_globals(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, `function,function,function,function`, h.run(t, `[typeof setTimeout, typeof setInterval, typeof clearTimeout, typeof clearInterval].join()`).String())
}

func TestBinding_setTimeout_functionWithArgs(t *testing.T) {
	h := newHarness(t)
	id := h.run(t, `
var got = [];
setTimeout(function (a, b) {
	"use strict";
	got.push([this === undefined, a + b, elapsed()]);
}, 10, 1, 2);
`)
	assert.Equal(t, int64(1), id.ToInteger())

	h.runUntil(9 * time.Millisecond)
	assert.Equal(t, `[]`, h.run(t, `JSON.stringify(got)`).String())

	h.runUntil(time.Second)
	assert.Equal(t, `[[true,3,10]]`, h.run(t, `JSON.stringify(got)`).String())
	assert.Empty(t, h.errs)
}

func TestBinding_setTimeout_stringHandler(t *testing.T) {
	h := newHarness(t)
	h.run(t, `var x = 0; setTimeout("x = 40 + 2", 5, "ignored");`)
	h.runUntil(time.Second)
	assert.Equal(t, int64(42), h.run(t, `x`).ToInteger())
}

func TestBinding_setTimeout_nonStringHandler(t *testing.T) {
	h := newHarness(t)
	h.run(t, `var calls = 0; setTimeout({ toString() { return "calls++" } });`)
	h.runUntil(0)
	assert.Equal(t, int64(1), h.run(t, `calls`).ToInteger())
}

func TestBinding_setInterval_selfClear(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
var calls = [];
var id = setInterval(function () {
	calls.push(elapsed());
	if (calls.length === 3) {
		clearInterval(id);
	}
}, 10);
`)
	h.runUntil(time.Second)
	assert.Equal(t, `[10,20,30]`, h.run(t, `JSON.stringify(calls)`).String())
	assert.Zero(t, h.timers.Len())
}

func TestBinding_clearTimeout(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
var fired = false;
var id = setTimeout(function () { fired = true; }, 5);
clearTimeout(id);
clearTimeout(id);
clearTimeout();
clearTimeout(-1);
clearTimeout("nope");
clearInterval(1e20);
`)
	h.runUntil(time.Second)
	assert.False(t, h.run(t, `fired`).ToBoolean())
}

func TestBinding_clearTimeout_sharedHandleSpace(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
var fired = false;
clearTimeout(setInterval(function () { fired = true; }, 5));
`)
	h.runUntil(time.Second)
	assert.False(t, h.run(t, `fired`).ToBoolean())
}

func TestBinding_timeoutConversion(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
var order = [];
setTimeout(function () { order.push("string"); }, "10");
setTimeout(function () { order.push("negative"); }, -5);
setTimeout(function () { order.push("wrapped"); }, 4294967297);
setTimeout(function () { order.push("nan"); }, NaN);
`)
	h.runUntil(time.Second)
	assert.Equal(t, `["negative","nan","wrapped","string"]`, h.run(t, `JSON.stringify(order)`).String())
}

func TestToInt32(t *testing.T) {
	rt := goja.New()
	for _, tc := range [...]struct {
		in  any
		out int32
	}{
		{0, 0},
		{1.9, 1},
		{-1.9, -1},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{4294967297.0, 1},
		{2147483648.0, math.MinInt32},
		{-2147483649.0, math.MaxInt32},
		{"25", 25},
	} {
		assert.Equal(t, tc.out, toInt32(rt.ToValue(tc.in)), "in=%v", tc.in)
	}
	assert.Equal(t, int32(0), toInt32(nil))
	assert.Equal(t, int32(0), toInt32(goja.Undefined()))
}

func TestBinding_exceptionsReported(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelError),
	).Logger()

	h := newHarness(t, WithLogger(logger))
	h.run(t, `
var after = false;
setTimeout(function () { throw new Error("boom"); }, 0);
setTimeout("throw new TypeError('bad')", 0);
setTimeout(function () { after = true; }, 0);
`)
	h.runUntil(0)

	assert.True(t, h.run(t, `after`).ToBoolean())
	require.Len(t, h.errs, 2)
	var exception *goja.Exception
	require.ErrorAs(t, h.errs[0], &exception)
	assert.Contains(t, exception.Error(), "boom")
	assert.Contains(t, h.errs[1].Error(), "bad")
	assert.Contains(t, buf.String(), `gojatimers: uncaught exception in timer handler`)
}

func TestBinding_Interrupt(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.runtime.Set(`stop`, func() { h.binding.Interrupt("halt") }))
	h.run(t, `
var calls = [];
setTimeout(function () { calls.push(1); stop(); calls.push(2); }, 0);
setTimeout(function () { calls.push(3); }, 0);
`)
	h.runUntil(time.Second)

	assert.False(t, h.binding.CanContinue())
	require.Len(t, h.errs, 1)
	var interrupted *goja.InterruptedError
	require.ErrorAs(t, h.errs[0], &interrupted)
	assert.Equal(t, "halt", interrupted.Value())

	h.runtime.ClearInterrupt()
	assert.Equal(t, `[1]`, h.run(t, `JSON.stringify(calls)`).String())
}

func TestRequire(t *testing.T) {
	h := newHarness(t)
	registry := gojarequire.NewRegistry()
	registry.RegisterNativeModule(ModuleName, Require(h.timers))
	rt := goja.New()
	registry.Enable(rt)

	v, err := rt.RunString(`
var timers = require('timers');
var fired = 0;
timers.setTimeout(function (n) { fired += n; }, 1, 5);
timers.clearTimeout(timers.setTimeout(function () { fired += 100; }, 1));
typeof setTimeout;
`)
	require.NoError(t, err)
	assert.Equal(t, `undefined`, v.String())

	h.runUntil(time.Second)
	fired, err := rt.RunString(`fired`)
	require.NoError(t, err)
	assert.Equal(t, int64(5), fired.ToInteger())
}

func TestRequire_nilTimers(t *testing.T) {
	registry := gojarequire.NewRegistry()
	registry.RegisterNativeModule(ModuleName, Require(nil))
	rt := goja.New()
	registry.Enable(rt)
	_, err := rt.RunString(`require('timers')`)
	assert.ErrorContains(t, err, ErrNilTimers.Error())
}
