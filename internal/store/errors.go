package store

import "errors"

// ErrNotFound means no stored row matched.
var ErrNotFound = errors.New("store: not found")
