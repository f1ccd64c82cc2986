// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package oneshot

import (
	"fmt"
	"time"
)

type (
	// Handle identifies a single pending timer. Handles are allocated from 1,
	// strictly increasing, and are never reused by the same [Registry].
	Handle uint32

	// EventID is the token carried by a [Request], and echoed back by the
	// resulting [Event]. Only the most recently issued value is accepted by
	// [Registry.Fire].
	EventID uint64

	// Source tags the origin of a timer. It is opaque to the registry, and is
	// passed through to the wake-up source, as part of each [Request].
	Source uint8

	// Request is sent to the wake-up source, asking it to deliver an [Event]
	// carrying EventID to Reply, once Delay has elapsed.
	Request struct {
		Reply   chan<- Event
		Source  Source
		EventID EventID
		Delay   time.Duration
	}

	// Event is the wake notification delivered by the wake-up source.
	Event struct {
		Source  Source
		EventID EventID
	}

	// Scheduler models the endpoint of the wake-up source. Implementations
	// must not block on the delivery of the resulting [Event], and need not
	// cancel superseded requests.
	Scheduler interface {
		ScheduleWake(req Request)
	}

	// SchedulerFunc implements [Scheduler] using a function.
	SchedulerFunc func(req Request)

	// ChanScheduler implements [Scheduler] by sending requests on a channel.
	// The channel should be buffered, as ScheduleWake blocks until the send
	// completes.
	ChanScheduler chan<- Request

	// Callback is the opaque payload invoked when a timer fires.
	Callback interface {
		Invoke()
	}

	// CallbackFunc implements [Callback] using a function.
	CallbackFunc func()

	// Environment models the execution environment, that callbacks are
	// invoked within. CanContinue is consulted before each invocation, and
	// returning false (e.g. because the context is tearing down) aborts the
	// remainder of the firing pass.
	Environment interface {
		CanContinue() bool
	}

	// EnvironmentFunc implements [Environment] using a function.
	EnvironmentFunc func() bool

	alwaysContinue struct{}
)

const (
	// SourceWindow indicates a timer scheduled by a window (document) scope.
	SourceWindow Source = iota
	// SourceWorker indicates a timer scheduled by a worker scope.
	SourceWorker
)

var (
	// compile time assertions

	_ Scheduler   = SchedulerFunc(nil)
	_ Scheduler   = ChanScheduler(nil)
	_ Callback    = CallbackFunc(nil)
	_ Environment = EnvironmentFunc(nil)
	_ Environment = alwaysContinue{}
)

func (x Source) String() string {
	switch x {
	case SourceWindow:
		return "window"
	case SourceWorker:
		return "worker"
	default:
		return fmt.Sprintf("source(%d)", uint8(x))
	}
}

func (x SchedulerFunc) ScheduleWake(req Request) { x(req) }

func (x ChanScheduler) ScheduleWake(req Request) { x <- req }

func (x CallbackFunc) Invoke() { x() }

func (x EnvironmentFunc) CanContinue() bool { return x() }

func (alwaysContinue) CanContinue() bool { return true }
