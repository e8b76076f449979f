package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("booking not found")

// ConflictError reports that a proposed slot collides with existing
// bookings on the resource.
type ConflictError struct {
	ResourceID uuid.UUID
	Conflicts  []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s has %d conflicting booking(s)", e.ResourceID, len(e.Conflicts))
}

// Resource unusable reasons.
const (
	ReasonNotOperational = "not-operational"
	ReasonUnavailable    = "unavailable"
)

// ResourceUnusableError reports that the resource cannot take bookings at
// all, independent of the requested slot.
type ResourceUnusableError struct {
	ResourceID uuid.UUID
	Reason     string
}

func (e *ResourceUnusableError) Error() string {
	return fmt.Sprintf("resource %s is %s", e.ResourceID, e.Reason)
}
