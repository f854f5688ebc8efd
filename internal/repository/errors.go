package repository

import "errors"

// ErrConflict is returned when an optimistic-concurrency check fails: the row
// was modified between the caller's read and its write.
var ErrConflict = errors.New("concurrent modification")
