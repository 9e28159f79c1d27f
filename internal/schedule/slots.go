package schedule

import "time"

// Slot is one bookable appointment window. Slots are generated on
// demand and never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Hours holds the business-hour shape of a bookable day. Close is the
// hour appointments must end by, so the last slot starts at
// Close - SlotMinutes.
type Hours struct {
	Open        int
	Close       int
	SlotMinutes int
}

func (h Hours) slotStep() time.Duration {
	return time.Duration(h.SlotMinutes) * time.Minute
}

// DaySlots generates the ordered, contiguous candidate slots for day.
// day must be civil midnight in the clinic's timezone. The first start
// is the opening hour or, when earliestStart falls later, the start of
// the slot period containing earliestStart (snapped down to the slot
// grid). The last slot ends at the closing hour; a slot that would
// spill past closing is not offered.
func (h Hours) DaySlots(day, earliestStart time.Time) []Slot {
	start := time.Date(day.Year(), day.Month(), day.Day(), h.Open, 0, 0, 0, day.Location())

	if start.Before(earliestStart) {
		start = snapDown(earliestStart, h.SlotMinutes)
	}

	closing := time.Date(day.Year(), day.Month(), day.Day(), h.Close, 0, 0, 0, day.Location())

	var slots []Slot
	for !start.Add(h.slotStep()).After(closing) {
		slots = append(slots, Slot{Start: start, End: start.Add(h.slotStep())})
		start = start.Add(h.slotStep())
	}
	return slots
}

// snapDown rounds t down to the previous multiple of slotMinutes past
// the hour, dropping seconds.
func snapDown(t time.Time, slotMinutes int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%slotMinutes, 0, 0, t.Location())
}

// Free reports whether the slot overlaps none of the busy intervals.
// Touching boundaries do not conflict: back-to-back appointments are
// allowed.
func (s Slot) Free(busy []Slot) bool {
	for _, b := range busy {
		if s.Start.Before(b.End) && s.End.After(b.Start) {
			return false
		}
	}
	return true
}
