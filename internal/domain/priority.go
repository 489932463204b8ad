package domain

import "strings"

// Priority is the optional urgency attached to a task.
type Priority string

// PriorityHigh and related constants enumerate the accepted priorities.
// PriorityNone is the unset value.
const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority normalizes raw input, accepting any letter case.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToUpper(strings.TrimSpace(raw))) {
	case PriorityNone:
		return PriorityNone, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return PriorityNone, ErrInvalidPriority
	}
}

// Valid reports whether p is one of the known priorities or unset.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities for sorting: HIGH > MEDIUM > LOW > unset.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Label returns a short display label.
func (p Priority) Label() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "-"
	}
}
