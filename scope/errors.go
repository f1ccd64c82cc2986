package scope

import (
	"errors"
)

var (
	// ErrScopeClosed is returned by [Scope.Submit] after [Scope.Close], or
	// once the loop has exited.
	ErrScopeClosed = errors.New("scope: scope is closed")

	// ErrAlreadyRunning is returned if the loop was already started.
	ErrAlreadyRunning = errors.New("scope: scope is already running")

	// ErrReentrantRun is returned if the loop is started from within itself.
	ErrReentrantRun = errors.New("scope: cannot run from within the scope")

	// ErrInvalidBufferSize is returned by [New] given a negative buffer size.
	ErrInvalidBufferSize = errors.New("scope: invalid buffer size")
)
