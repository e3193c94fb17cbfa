package domain

import "errors"

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrBadCategory   = errors.New("unknown message category")

	// ErrNoRoute means no active routing rule matches a message's category
	// and no default rule is configured. Terminal for the message.
	ErrNoRoute = errors.New("no route found")

	// ErrTemplateNotFound means a referenced template does not exist.
	// Terminal for the message.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrConflict means an administrative operation would violate a
	// configuration invariant. Rejected synchronously, never applied.
	ErrConflict = errors.New("configuration conflict")

	ErrNotFound = errors.New("not found")
)
