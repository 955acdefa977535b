package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows an audit query to one organization
type Filter struct {
	OrganizationID uuid.UUID
	Resource       Resource
	ResourceID     *uuid.UUID
	Action         Action
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// Repository manages audit event persistence with pagination support
type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// List returns matching events newest first together with the total match count
	List(ctx context.Context, filter Filter) ([]*Event, int64, error)
}

// ErrEventNotFound indicates a missing audit event
type ErrEventNotFound struct {
	EventID uuid.UUID
}

func (e ErrEventNotFound) Error() string {
	return "audit event not found: " + e.EventID.String()
}

// Is matches any ErrEventNotFound when the target carries no id
func (e ErrEventNotFound) Is(target error) bool {
	t, ok := target.(ErrEventNotFound)
	if !ok {
		return false
	}
	return t.EventID == uuid.Nil || e.EventID == t.EventID
}

// ErrDuplicateEvent indicates an event id that was already recorded
type ErrDuplicateEvent struct {
	EventID uuid.UUID
}

func (e ErrDuplicateEvent) Error() string {
	return "duplicate audit event: " + e.EventID.String()
}

// Is matches any ErrDuplicateEvent when the target carries no id
func (e ErrDuplicateEvent) Is(target error) bool {
	t, ok := target.(ErrDuplicateEvent)
	if !ok {
		return false
	}
	return t.EventID == uuid.Nil || e.EventID == t.EventID
}
