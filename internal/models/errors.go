package models

import (
	"errors"
)

var (
	// ErrGeneral is returned when the database fails in a way the caller
	// cannot act on. The details go to the log, not to the caller.
	ErrGeneral = errors.New("an unexpected error occurred while accessing the database")

	ErrResourceNotFound = errors.New("resource not found")
)
