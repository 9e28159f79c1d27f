package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteData   = errors.New("missing name, CPF or event id")
	ErrNotFound         = errors.New("appointment not found or already cancelled")
	ErrSlotTaken        = errors.New("slot no longer available")
	ErrSlotBeingBooked  = errors.New("slot is currently being booked, please retry")
	ErrIdentityMismatch = errors.New("appointment does not match the given name and CPF")
	ErrSameSlot         = errors.New("new time equals the current appointment time")
)

// RescheduleError reports the accepted inconsistency of a reschedule
// that booked the new slot but failed to cancel the old one: the
// patient now holds two active appointments. The caller needs the new
// event id to tell the patient which one stands.
type RescheduleError struct {
	NewEventID string
	CancelErr  error
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("new appointment %s booked but old one not cancelled: %v", e.NewEventID, e.CancelErr)
}

func (e *RescheduleError) Unwrap() error { return e.CancelErr }
