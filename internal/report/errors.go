package report

import "errors"

// ErrNotFound is returned by job stores when no record matches an ID.
var ErrNotFound = errors.New("job not found")
