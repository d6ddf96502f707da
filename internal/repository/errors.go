package repository

import "errors"

// ErrNotFound is returned when an id does not resolve to a record.
var ErrNotFound = errors.New("record not found")
