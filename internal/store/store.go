// Package store wraps all database access behind typed stores.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an optimistic-concurrency check fails.
var ErrConflict = errors.New("store: version conflict")
