package core

import "errors"

var (
	// ErrDuplicateConnection is returned when a connection attempts to
	// register a user while it already has one.
	ErrDuplicateConnection = errors.New("connection already registered")
)
