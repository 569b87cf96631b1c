package path

import "errors"

// ErrNotFound marks a pair with no trust path within MaxHops.
var ErrNotFound = errors.New("path: no trust path within max hops")
