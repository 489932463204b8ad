package domain

import "errors"

// ErrInvalidID and related errors describe validation failures.
var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrInvalidDescription = errors.New("invalid description")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInvalidColumnID    = errors.New("invalid column id")
	ErrInvalidColor       = errors.New("invalid color")
	ErrInvalidStatus      = errors.New("invalid project status")
	ErrInvalidRepository  = errors.New("invalid repository reference")
)

// ErrUnknownColumn and related errors describe board and drag failures.
var (
	ErrUnknownColumn        = errors.New("unknown column")
	ErrUnknownTask          = errors.New("unknown task")
	ErrColumnSetMismatch    = errors.New("column set mismatch")
	ErrSessionAlreadyActive = errors.New("drag session already active")
	ErrNoActiveSession      = errors.New("no active drag session")
	ErrStaleReferenceTask   = errors.New("stale reference task")
	ErrInvalidModel         = errors.New("invalid board model")
)
