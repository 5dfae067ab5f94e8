package domain

import "errors"

// ErrNotFound is returned by stores and parameter sources when the requested
// record does not exist. It is distinct from a failure to reach the backend.
var ErrNotFound = errors.New("not found")
