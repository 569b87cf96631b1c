package directory

import "errors"

var (
	// ErrUnknownAgent marks a referenced address that has never been observed.
	ErrUnknownAgent = errors.New("directory: unknown agent")
	// ErrAddressTaken marks an attempt to register an address already bound
	// to a different agent id.
	ErrAddressTaken = errors.New("directory: address already registered")
)
