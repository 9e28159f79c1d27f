package calendar

import (
	"context"
	"errors"
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

var ErrEventNotFound = errors.New("calendar event not found")

// Event is a full copy of a store-owned calendar event. The store
// assigns the ID; nothing here is ever partially patched.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Status      string
}

// EventDraft is the payload for creating a new event.
type EventDraft struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Store is the remote calendar capability the scheduling engines run
// against. Every call is a network round-trip with its own failure
// modes; callers re-fetch rather than caching events.
type Store interface {
	// ListEvents returns the non-cancelled events in [timeMin, timeMax)
	// ordered by start time. query optionally narrows the result with a
	// store-side text search over summary/description.
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, query string) ([]Event, error)

	// GetEvent returns a single event by id, including cancelled ones.
	// Returns ErrEventNotFound when the store has no such event.
	GetEvent(ctx context.Context, id string) (*Event, error)

	// InsertEvent creates an event and returns it with its assigned id.
	InsertEvent(ctx context.Context, draft EventDraft) (*Event, error)

	// DeleteEvent removes an event. The store marks it cancelled; it may
	// still be returned by GetEvent afterwards.
	DeleteEvent(ctx context.Context, id string) error
}
