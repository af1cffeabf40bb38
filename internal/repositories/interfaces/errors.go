package interfaces

import "errors"

// ErrNotFound is returned by lookups that match no row or document.
var ErrNotFound = errors.New("record not found")
