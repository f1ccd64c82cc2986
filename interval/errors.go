package interval

import (
	"errors"
)

var (
	// ErrNilRegistry is returned by [New] if no registry was provided.
	ErrNilRegistry = errors.New("interval: nil registry")
)
