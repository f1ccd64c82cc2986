package oneshot

import (
	"errors"
)

var (
	// ErrNilScheduler is returned by [New] if no [Scheduler] was provided.
	ErrNilScheduler = errors.New("oneshot: nil scheduler")

	// ErrSchedulingAlreadySetup is returned by [Registry.SetupScheduling] if
	// the reply channel was already installed.
	ErrSchedulingAlreadySetup = errors.New("oneshot: scheduling already set up")

	// ErrInvalidOption is wrapped by errors resulting from invalid [Option]
	// values.
	ErrInvalidOption = errors.New("oneshot: invalid option")
)
