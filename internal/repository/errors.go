package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrConflict is returned when a conditional update found the row in an unexpected state.
	ErrConflict = errors.New("entity state conflict")
)
