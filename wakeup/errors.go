package wakeup

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by [Service.Run] if it was already called.
	ErrAlreadyRunning = errors.New("wakeup: service is already running")
)
