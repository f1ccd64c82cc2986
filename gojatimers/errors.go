package gojatimers

import (
	"errors"
)

var (
	// ErrNilRuntime is returned by [Bind] given a nil runtime.
	ErrNilRuntime = errors.New("gojatimers: nil runtime")

	// ErrNilTimers is returned by [Bind] given nil timers.
	ErrNilTimers = errors.New("gojatimers: nil timers")
)
